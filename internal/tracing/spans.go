package tracing

// Span attribute keys.
const (
	AttrRunID       = "lineage.run_id"
	AttrAdapterKind = "adapter.kind"
	AttrAdapterName = "adapter.name"
	AttrStorage     = "adapter.storage"
	AttrPlugin      = "plugin.name"
	AttrPlugins     = "plugin.names"
)

// Span names.
const (
	SpanConfigure   = "harness.configure"
	SpanSetup       = "harness.setup"
	SpanPluginLoad  = "plugin.load"
	SpanAdapterPing = "adapter.ping"
)
