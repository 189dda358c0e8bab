package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/lineage/internal/log"
)

// InMemoryName is the driver name of the process-local store.
const InMemoryName = "in_memory"

const (
	memoryScheme          = InMemoryName + "://"
	memoryCleanupInterval = 30 * time.Minute
	pingKey               = "lineage:ping"
)

func init() {
	Register(NewMemoryDriver())
}

// MemoryDriver keeps one go-cache store per storage name for the life of
// the process, so reconnecting to a storage sees the same data.
type MemoryDriver struct {
	mu     sync.Mutex
	stores map[string]*gocache.Cache
}

// NewMemoryDriver creates a driver with no stores.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{stores: make(map[string]*gocache.Cache)}
}

func (d *MemoryDriver) Name() string { return InMemoryName }

// ConnectionURI returns in_memory://<storage>. Credentials and host are
// meaningless for a process-local store.
func (d *MemoryDriver) ConnectionURI(t Target) string {
	return memoryScheme + t.Storage
}

// Open returns a connection to the store named by uri, creating it on
// first use.
func (d *MemoryDriver) Open(_ context.Context, uri string) (Conn, error) {
	storage, ok := strings.CutPrefix(uri, memoryScheme)
	if !ok || storage == "" {
		return nil, fmt.Errorf("in_memory: invalid uri %q", uri)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	store, ok := d.stores[storage]
	if !ok {
		store = gocache.New(gocache.NoExpiration, memoryCleanupInterval)
		d.stores[storage] = store
		log.Debug(log.CatCache, "store created", "storage", storage)
	}
	return &MemoryConn{storage: storage, cache: store}, nil
}

// MemoryConn is a handle on one in-memory store.
type MemoryConn struct {
	storage string
	cache   *gocache.Cache
}

// Flush empties the store.
func (c *MemoryConn) Flush(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := c.cache.ItemCount()
	c.cache.Flush()
	log.Debug(log.CatCache, "store flushed", "storage", c.storage, "keys", n)
	return n, nil
}

// Ping writes, reads back and removes a sentinel key.
func (c *MemoryConn) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	want := time.Now().UnixNano()
	c.cache.Set(pingKey, want, gocache.NoExpiration)
	defer c.cache.Delete(pingKey)

	got, found := c.cache.Get(pingKey)
	if !found {
		return fmt.Errorf("in_memory %s: ping key vanished", c.storage)
	}
	if v, ok := got.(int64); !ok || v != want {
		log.Error(log.CatCache, "wrong type assertion when reading ping key", "storage", c.storage)
		return fmt.Errorf("in_memory %s: ping value mismatch", c.storage)
	}
	return nil
}

// Close is a no-op; the store outlives its connections.
func (c *MemoryConn) Close() error { return nil }
