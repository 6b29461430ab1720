package models

// WSMessage is the envelope for progress events relayed to clients.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	TaskID  string `json:"task_id"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

type CompletedEvent struct {
	TaskID        string `json:"task_id"`
	ClipsCreated  int    `json:"clips_created"`
	OriginalTitle string `json:"original_title"`
}

type ErrorEvent struct {
	TaskID       string `json:"task_id"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// API error response shape shared by all handlers.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
