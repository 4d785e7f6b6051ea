package protocol

// Control and window methods understood by the engine itself. Every other
// method name comes from the application's catalog.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "initialized"
	MethodShutdown    = "shutdown"
	MethodExit        = "exit"

	MethodCancelRequest = "$/cancelRequest"
	MethodProgress      = "$/progress"

	MethodLogMessage             = "window/logMessage"
	MethodShowMessage            = "window/showMessage"
	MethodWorkDoneProgressCreate = "window/workDoneProgress/create"
	MethodWorkDoneProgressCancel = "window/workDoneProgress/cancel"
)

// CancelParams is the payload of $/cancelRequest
type CancelParams struct {
	ID RequestID `json:"id"`
}

// MessageType is the severity of a window/logMessage or window/showMessage
type MessageType int

const (
	MessageTypeError MessageType = iota + 1
	MessageTypeWarning
	MessageTypeInfo
	MessageTypeLog
)

// LogMessageParams is the payload of window/logMessage
type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ShowMessageParams is the payload of window/showMessage
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// WorkDoneProgressCreateParams is the payload of window/workDoneProgress/create
type WorkDoneProgressCreateParams struct {
	Token ProgressToken `json:"token"`
}

// WorkDoneProgressCancelParams is the payload of window/workDoneProgress/cancel
type WorkDoneProgressCancelParams struct {
	Token ProgressToken `json:"token"`
}

// ProgressParams is the payload of $/progress. Value is one of the
// WorkDoneProgress* types below.
type ProgressParams struct {
	Token ProgressToken `json:"token"`
	Value interface{}   `json:"value"`
}

// Progress value kinds
const (
	ProgressKindBegin  = "begin"
	ProgressKindReport = "report"
	ProgressKindEnd    = "end"
)

// WorkDoneProgressBegin opens a progress stream
type WorkDoneProgressBegin struct {
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	Cancellable bool    `json:"cancellable,omitempty"`
	Message     string  `json:"message,omitempty"`
	Percentage  *uint32 `json:"percentage,omitempty"`
}

// WorkDoneProgressReport updates an open progress stream
type WorkDoneProgressReport struct {
	Kind        string  `json:"kind"`
	Cancellable *bool   `json:"cancellable,omitempty"`
	Message     string  `json:"message,omitempty"`
	Percentage  *uint32 `json:"percentage,omitempty"`
}

// WorkDoneProgressEnd closes a progress stream
type WorkDoneProgressEnd struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}
