// Package adapter selects and probes the backing store used by a test run.
//
// Drivers register themselves in init, the way database/sql drivers do.
// The harness asks a driver for a connection URI built from a Target, opens
// it and pings it. Key-value stores can also be flushed between runs.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownDriver is returned when no driver is registered under a name.
var ErrUnknownDriver = errors.New("unknown adapter")

// Target identifies one storage on a backing store.
type Target struct {
	Storage  string // database, file or keyspace name
	Username string
	Password string
	Host     string // host or host:port for networked drivers
	Root     string // project root for file-backed drivers
	Index    int    // ordinal of the adapter kind; drivers with numbered keyspaces use it
}

// Driver builds connection URIs and opens connections for one store type.
type Driver interface {
	// Name is the ADAPTER value that selects this driver.
	Name() string

	// ConnectionURI renders the URI for t. It does not touch the network.
	ConnectionURI(t Target) string

	// Open connects to uri. Implementations may connect lazily; Ping
	// verifies the connection.
	Open(ctx context.Context, uri string) (Conn, error)
}

// Conn is an open connection to a backing store.
type Conn interface {
	// Ping runs the cheapest round trip the store supports.
	Ping(ctx context.Context) error
	Close() error
}

// Flusher is implemented by connections whose storage can be emptied
// between test runs.
type Flusher interface {
	// Flush removes every key from the storage and reports how many there were.
	Flush(ctx context.Context) (int, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes d available by name. Registering the same name twice
// panics.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		panic("adapter: Register driver is nil")
	}
	if _, dup := drivers[d.Name()]; dup {
		panic("adapter: Register called twice for driver " + d.Name())
	}
	drivers[d.Name()] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, name)
	}
	return d, nil
}

// Names returns the registered driver names, sorted.
func Names() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
