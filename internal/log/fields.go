package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"

	FieldAccountID    = "account_id"
	FieldAccountName  = "account_name"
	FieldDate         = "date"
	FieldBalanceCents = "balance_cents"
	FieldRow          = "row"
)

// Standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentImport  = "import"
)
