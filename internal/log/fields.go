package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldUser        = "user"
	FieldAdmin       = "is_admin"
	FieldCategory    = "category"
	FieldAmountCents = "amount_cents"
	FieldTxID        = "transaction_id"
	FieldReport      = "report"
	FieldPeriod      = "period"
	FieldCounter     = "report_counter"
)

// Components
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentAuth    = "auth"
	ComponentBackend = "backend"
)

// Operations
const (
	OpOpen     = "open"
	OpRecord   = "record"
	OpSubmit   = "submit"
	OpExport   = "export"
	OpLogin    = "login"
	OpOverview = "overview"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Error types
const (
	ErrorTypeValidation   = "validation_error"
	ErrorTypePrecondition = "precondition_error"
	ErrorTypeStorage      = "storage_error"
	ErrorTypeAuth         = "auth_error"
	ErrorTypeNotFound     = "not_found_error"
	ErrorTypeInternal     = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithUser(user string, admin bool) LogFields {
	f[FieldUser] = user
	f[FieldAdmin] = admin
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

// ToArgs flattens the fields into slog key/value pairs.
func (f LogFields) ToArgs() []any {
	args := make([]any, 0, len(f)*2)
	for k, v := range f {
		args = append(args, k, v)
	}
	return args
}
