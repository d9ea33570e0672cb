package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldCarID      = "car_id"
	FieldCategory   = "category"
	FieldMetric     = "metric"
	FieldInput      = "input"
	FieldTables     = "tables"
	FieldRecordID   = "record_id"
	FieldRecords    = "records"
	FieldItems      = "items"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentStorage  = "storage"
	ComponentCache    = "cache"
	ComponentCalc     = "calc"
	ComponentBalancer = "balancer"
	ComponentAMQP     = "amqp"
	ComponentNotify   = "notify"
	ComponentBackend  = "backend"
	ComponentCLI      = "cli"
	ComponentService  = "service"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpList       = "list"
	OpImport     = "import"
	OpRebuild    = "rebuild"
	OpInvalidate = "invalidate"
	OpCalculate  = "calculate"
	OpValidate   = "validate"
	OpForward    = "forward"
	OpConsume    = "consume"
	OpMigrate    = "migrate"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithCar adds the car and, when known, the fuel category.
func (f LogFields) WithCar(carID int64, category string) LogFields {
	f[FieldCarID] = carID
	if category != "" {
		f[FieldCategory] = category
	}
	return f
}

// WithMetric adds the metric name and its input value.
func (f LogFields) WithMetric(metric string, input float64) LogFields {
	f[FieldMetric] = metric
	f[FieldInput] = input
	return f
}

// WithTables adds the list of changed tables.
func (f LogFields) WithTables(tables []string) LogFields {
	f[FieldTables] = tables
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog, ordered by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
