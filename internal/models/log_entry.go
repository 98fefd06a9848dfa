package models

// RequestInfo stores context about the HTTP request that triggered a log entry.
type RequestInfo struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent"`
}

// ErrorInfo stores structured information about an error.
type ErrorInfo struct {
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`        // e.g. "database_error", "validation_error"
	StatusCode int    `json:"status_code,omitempty"` // associated HTTP status code, if any
}
