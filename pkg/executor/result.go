package executor

// Citation points at the source material a tool's output drew from
type Citation struct {
	Source string `json:"source"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
}

// ToolResult is the uniform envelope every call produces. Callers
// always receive one of these, never a raw error.
type ToolResult struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Citations []Citation  `json:"citations,omitempty"`
}

// ConfirmationRequest is the Data payload returned when a call is
// parked pending human confirmation
type ConfirmationRequest struct {
	RequiresConfirmation bool   `json:"requires_confirmation"`
	CallID               string `json:"call_id"`
	Message              string `json:"message"`
}

func successResult(data interface{}) ToolResult {
	return ToolResult{Success: true, Data: data}
}

func errorResult(message string) ToolResult {
	return ToolResult{Success: false, Error: message}
}
