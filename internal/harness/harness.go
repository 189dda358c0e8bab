// Package harness bootstraps the environment a test run needs: logging,
// plugins loaded into a hierarchy, and connected default and alternate
// storages on the configured adapter.
//
// Nothing happens at construction. The first action configures the harness
// once; later actions reuse that configuration.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/lineage/internal/adapter"
	"github.com/zjrosen/lineage/internal/config"
	"github.com/zjrosen/lineage/internal/hierarchy"
	"github.com/zjrosen/lineage/internal/log"
	"github.com/zjrosen/lineage/internal/metrics"
	"github.com/zjrosen/lineage/internal/plugin"
	"github.com/zjrosen/lineage/internal/tracing"
)

// DefaultProject names storages and their credentials.
const DefaultProject = "lineage"

var (
	// ErrClosed is returned by actions on a closed harness.
	ErrClosed = errors.New("harness closed")
	// ErrResetUnsupported is returned by Reset for drivers that cannot be
	// flushed, such as sql databases.
	ErrResetUnsupported = errors.New("adapter does not support reset")
)

// Harness owns one configured test environment.
type Harness struct {
	cfg     config.Config
	project string
	runID   string
	stdout  io.Writer
	metrics *metrics.Metrics

	hier     *hierarchy.Hierarchy
	ownsHier bool

	mu         sync.Mutex
	configured bool
	closed     bool
	driver     adapter.Driver
	tracer     *tracing.Provider
	logCleanup func()
	adapters   map[Kind]*Adapter
}

// Option configures a Harness.
type Option func(*Harness)

// WithProject overrides the project name used for storages and credentials.
func WithProject(name string) Option {
	return func(h *Harness) { h.project = name }
}

// WithHierarchy loads plugins into hier instead of a harness-owned one.
// The caller keeps ownership of hier.
func WithHierarchy(hier *hierarchy.Hierarchy) Option {
	return func(h *Harness) { h.hier = hier }
}

// WithMetrics records setup attempts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithStdout sets where stdout logging goes. Default os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(h *Harness) { h.stdout = w }
}

// New creates an unconfigured harness for cfg.
func New(cfg config.Config, opts ...Option) *Harness {
	h := &Harness{
		cfg:      cfg,
		project:  DefaultProject,
		runID:    uuid.NewString(),
		stdout:   os.Stdout,
		adapters: make(map[Kind]*Adapter),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	if h.hier == nil {
		h.hier = hierarchy.New(hierarchy.WithMetrics(h.metrics))
		h.ownsHier = true
	}
	return h
}

// RunID identifies this harness in logs and spans.
func (h *Harness) RunID() string { return h.runID }

// Config returns the configuration the harness was built with.
func (h *Harness) Config() config.Config { return h.cfg }

// Hierarchy returns the hierarchy plugins are loaded into.
func (h *Harness) Hierarchy() *hierarchy.Hierarchy { return h.hier }

// Metrics returns the harness metrics.
func (h *Harness) Metrics() *metrics.Metrics { return h.metrics }

// Configured reports whether Configure has completed.
func (h *Harness) Configured() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.configured
}

// Configure sets up logging and tracing, selects the adapter driver, loads
// plugins and the optional hierarchy definition. It runs once; a failed
// attempt is undone and may be retried.
func (h *Harness) Configure(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.configureLocked(ctx)
}

func (h *Harness) configureLocked(ctx context.Context) (err error) {
	if h.closed {
		return ErrClosed
	}
	if h.configured {
		return nil
	}
	if err := h.cfg.Validate(); err != nil {
		return err
	}

	if err := h.initLogging(); err != nil {
		return err
	}
	tracer, err := tracing.NewProvider(h.cfg.Tracing)
	if err != nil {
		h.teardown(ctx)
		return fmt.Errorf("configuring tracing: %w", err)
	}
	h.tracer = tracer

	ctx, span := h.tracer.Tracer().Start(ctx, tracing.SpanConfigure, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, h.runID),
		attribute.String(tracing.AttrAdapterName, h.cfg.Adapter),
		attribute.StringSlice(tracing.AttrPlugins, h.cfg.Plugins),
	))
	defer func() {
		endSpan(span, err)
		if err != nil {
			h.teardown(ctx)
		}
	}()

	driver, err := adapter.Lookup(h.cfg.Adapter)
	if err != nil {
		log.ErrorErr(log.CatHarness, "adapter selection failed", err, "run", h.runID)
		return err
	}
	h.driver = driver

	if err := h.loadPlugins(ctx); err != nil {
		return err
	}

	if h.cfg.Definition != "" {
		if err := hierarchy.LoadFile(h.hier, h.cfg.Definition); err != nil {
			log.ErrorErr(log.CatHarness, "definition failed to load", err, "run", h.runID, "path", h.cfg.Definition)
			return fmt.Errorf("loading definition: %w", err)
		}
	}

	h.configured = true
	log.Info(log.CatHarness, "configured",
		"run", h.runID,
		"adapter", h.cfg.Adapter,
		"supports", h.cfg.AdapterSupports,
		"plugins", strings.Join(h.cfg.Plugins, ","))
	return nil
}

func (h *Harness) initLogging() error {
	path, stdout, enabled := h.cfg.LogTarget()
	switch {
	case !enabled:
		return nil
	case stdout:
		h.logCleanup = log.InitWriter(h.stdout)
	default:
		cleanup, err := log.Init(path)
		if err != nil {
			return fmt.Errorf("configuring logging: %w", err)
		}
		h.logCleanup = cleanup
	}
	if h.cfg.LogLevel != "" {
		log.SetMinLevel(log.ParseLevel(h.cfg.LogLevel))
	}
	return nil
}

func (h *Harness) loadPlugins(ctx context.Context) error {
	for _, name := range h.cfg.Plugins {
		_, span := h.tracer.Tracer().Start(ctx, tracing.SpanPluginLoad,
			trace.WithAttributes(attribute.String(tracing.AttrPlugin, name)))
		err := plugin.Require(h.hier, name)
		endSpan(span, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// Setup returns the adapter of kind, connecting on first use.
func (h *Harness) Setup(ctx context.Context, kind Kind) (*Adapter, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.configureLocked(ctx); err != nil {
		return nil, err
	}
	kind = kind.orDefault()
	if a, ok := h.adapters[kind]; ok {
		return a, nil
	}
	return h.connectLocked(ctx, kind)
}

// SetupNow reconnects the adapter of kind, closing any previous connection.
func (h *Harness) SetupNow(ctx context.Context, kind Kind) (*Adapter, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.configureLocked(ctx); err != nil {
		return nil, err
	}
	kind = kind.orDefault()
	if prev, ok := h.adapters[kind]; ok {
		delete(h.adapters, kind)
		if err := prev.close(); err != nil {
			log.ErrorErr(log.CatHarness, "closing previous connection failed", err, "run", h.runID, "kind", kind)
		}
	}
	return h.connectLocked(ctx, kind)
}

// Reset empties the storage of kind, connecting first if needed, and
// returns the number of keys removed.
func (h *Harness) Reset(ctx context.Context, kind Kind) (int, error) {
	a, err := h.Setup(ctx, kind)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if a.conn == nil {
		return 0, ErrClosed
	}
	f, ok := a.conn.(adapter.Flusher)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrResetUnsupported, a.driver)
	}
	n, err := f.Flush(ctx)
	if err != nil {
		log.ErrorErr(log.CatHarness, "reset failed", err, "run", h.runID, "kind", a.kind)
		return 0, fmt.Errorf("resetting %s adapter: %w", a.kind, err)
	}
	log.Info(log.CatHarness, "storage reset", "run", h.runID, "kind", a.kind, "keys", n)
	return n, nil
}

// Adapter is Setup.
func (h *Harness) Adapter(ctx context.Context, kind Kind) (*Adapter, error) {
	return h.Setup(ctx, kind)
}

// AdapterName returns the adapter type that backs kind, the ADAPTER value
// that selected its driver. Like the other actions it configures the
// harness first.
func (h *Harness) AdapterName(ctx context.Context, kind Kind) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.configureLocked(ctx); err != nil {
		return "", err
	}
	if _, err := kind.index(); err != nil {
		return "", err
	}
	return h.driver.Name(), nil
}

// Supports reports whether the configured adapter claims capability.
func (h *Harness) Supports(capability string) bool {
	return h.cfg.Supports(capability)
}

func (h *Harness) connectLocked(ctx context.Context, kind Kind) (_ *Adapter, err error) {
	index, err := kind.index()
	if err != nil {
		return nil, err
	}

	target := adapter.Target{
		Storage:  fmt.Sprintf("%s_%s_tests", h.project, kind),
		Username: h.project,
		Password: h.project,
		Host:     h.cfg.Host,
		Root:     h.cfg.Root,
		Index:    index,
	}
	a := &Adapter{
		kind:   kind,
		driver: h.driver.Name(),
		target: target,
		uri:    h.driver.ConnectionURI(target),
	}

	ctx, span := h.tracer.Tracer().Start(ctx, tracing.SpanSetup, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, h.runID),
		attribute.String(tracing.AttrAdapterKind, string(kind)),
		attribute.String(tracing.AttrAdapterName, a.driver),
		attribute.String(tracing.AttrStorage, target.Storage),
	))
	defer func() {
		endSpan(span, err)
		h.metrics.ObserveSetup(a.driver, err)
	}()

	conn, err := h.driver.Open(ctx, a.uri)
	if err == nil {
		_, pingSpan := h.tracer.Tracer().Start(ctx, tracing.SpanAdapterPing)
		err = conn.Ping(ctx)
		endSpan(pingSpan, err)
		if err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		log.ErrorErr(log.CatHarness, "could not connect to the database", err,
			"run", h.runID, "kind", kind, "uri", redact(a.uri))
		return nil, fmt.Errorf("setting up %s adapter at %s: %w", kind, redact(a.uri), err)
	}

	a.conn = conn
	h.adapters[kind] = a
	log.Info(log.CatHarness, "adapter connected", "run", h.runID, "kind", kind, "uri", redact(a.uri))
	return a, nil
}

// Close disconnects every adapter and releases tracing and logging. It is
// safe to call more than once.
func (h *Harness) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	for _, kind := range Kinds() {
		if a, ok := h.adapters[kind]; ok {
			errs = append(errs, a.close())
		}
	}
	clear(h.adapters)
	errs = append(errs, h.teardown(context.Background()))
	if h.ownsHier {
		h.hier.Close()
	}
	return errors.Join(errs...)
}

// teardown releases tracing and logging set up by Configure.
func (h *Harness) teardown(ctx context.Context) error {
	var err error
	if h.tracer != nil {
		err = h.tracer.Shutdown(ctx)
		h.tracer = nil
	}
	if h.logCleanup != nil {
		h.logCleanup()
		h.logCleanup = nil
	}
	h.driver = nil
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// redact hides the password in URIs that carry one.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return u.Redacted()
}
