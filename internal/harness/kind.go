package harness

import (
	"errors"
	"fmt"

	"github.com/zjrosen/lineage/internal/adapter"
)

// ErrUnknownKind is returned for an adapter kind other than default or alternate.
var ErrUnknownKind = errors.New("unknown adapter kind")

// Kind names one of the two storages a test run can use.
type Kind string

const (
	KindDefault   Kind = "default"
	KindAlternate Kind = "alternate"
)

// Kinds returns every kind in setup order.
func Kinds() []Kind { return []Kind{KindDefault, KindAlternate} }

func (k Kind) index() (int, error) {
	switch k {
	case KindDefault, "":
		return 0, nil
	case KindAlternate:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
}

// orDefault maps the empty kind to KindDefault.
func (k Kind) orDefault() Kind {
	if k == "" {
		return KindDefault
	}
	return k
}

// Adapter is a connected storage of one kind.
type Adapter struct {
	kind   Kind
	driver string
	target adapter.Target
	uri    string
	conn   adapter.Conn
}

// Name returns the adapter kind.
func (a *Adapter) Name() Kind { return a.kind }

// Driver returns the driver name, the ADAPTER setting.
func (a *Adapter) Driver() string { return a.driver }

// StorageName returns <project>_<kind>_tests.
func (a *Adapter) StorageName() string { return a.target.Storage }

// Username returns the storage user, the project name.
func (a *Adapter) Username() string { return a.target.Username }

// Password returns the storage password, the project name.
func (a *Adapter) Password() string { return a.target.Password }

// ConnectionURI returns the URI the adapter connected with.
func (a *Adapter) ConnectionURI() string { return a.uri }

// Conn returns the open connection.
func (a *Adapter) Conn() adapter.Conn { return a.conn }

func (a *Adapter) close() error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}
