package contract

// ResultStatus is the closed set of outcomes a tool can report back to the model.
type ResultStatus string

const (
	StatusSuccess       ResultStatus = "success"
	StatusEmpty         ResultStatus = "empty"
	StatusError         ResultStatus = "error"
	StatusErrorTemporal ResultStatus = "error_temporal"
	StatusPriceNotFound ResultStatus = "price_not_found"
	StatusOutOfStock    ResultStatus = "out_of_stock"
	StatusUnconfirmed   ResultStatus = "unconfirmed"
	StatusNotAvailable  ResultStatus = "not_available"
)

// Valid reports whether s belongs to the result taxonomy.
func (s ResultStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusEmpty, StatusError, StatusErrorTemporal,
		StatusPriceNotFound, StatusOutOfStock, StatusUnconfirmed, StatusNotAvailable:
		return true
	default:
		return false
	}
}

// Succeeded reports whether the status counts as a successful operation for
// caching and retry bookkeeping.
func (s ResultStatus) Succeeded() bool {
	return s == StatusSuccess || s == StatusEmpty
}

// ToolResult is the record every tool returns and the model reads.
type ToolResult struct {
	Status        ResultStatus   `json:"status"`
	Message       string         `json:"message"`
	Payload       map[string]any `json:"payload,omitempty"`
	OriginalError string         `json:"original_error,omitempty"`
	RetryAttempt  int            `json:"retry_attempt,omitempty"`
}

func (r ToolResult) Succeeded() bool {
	return r.Status.Succeeded()
}

func Success(message string, payload map[string]any) ToolResult {
	return ToolResult{Status: StatusSuccess, Message: message, Payload: payload}
}

func Failure(message string) ToolResult {
	return ToolResult{Status: StatusError, Message: message}
}

// TurnContext identifies the conversation turn a phase belongs to.
type TurnContext struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	AgentName    string `json:"agent_name"`
	InvocationID string `json:"invocation_id"`
	BusinessID   int64  `json:"business_id"`
}

// ToolInvocation is passed through every interceptor stage of a single tool call.
// Args holds only what the model sent; infrastructure is carried in Deps.
// ArgsErr is set when the model's arguments could not be decoded; the call is
// then rejected before any tool runs.
type ToolInvocation struct {
	ToolName string
	Args     map[string]any
	ArgsErr  error
	Turn     TurnContext
	Deps     Dependencies
}

// Dependencies are injected right before a tool executes.
type Dependencies struct {
	BusinessID    int64
	CustomerPhone string
	Catalog       Catalog
	Cart          Cart
	Notifier      Notifier
}
