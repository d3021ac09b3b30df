package observe

import "errors"

var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample percentage must be between 0.0 and 1.0")
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: invalid log level")

	// ErrNilObserver is returned when middleware is built without an observer.
	ErrNilObserver = errors.New("observe: observer is nil")

	// ErrMissingEvent is returned for an EventMeta with no lifecycle event.
	ErrMissingEvent = errors.New("observe: event name is required")
)

// Sampling bounds for TracingConfig.SamplePct.
const (
	MinSamplePct = 0.0
	MaxSamplePct = 1.0
)

// Accepted exporter and level names. The empty string means the default.
var (
	ValidTracingExporters = []string{"otlp", "jaeger", "stdout", "none", ""}
	ValidMetricsExporters = []string{"otlp", "prometheus", "stdout", "none", ""}
	ValidLogLevels        = []string{"debug", "info", "warn", "error", ""}
)

// RedactedFields are log field keys whose values never reach the output.
// Admin credentials and origin auth headers are the sensitive values this
// daemon handles; cached bodies are not logged at all.
var RedactedFields = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"token",
	"jwt_key",
	"api_key",
	"secret",
	"password",
}
