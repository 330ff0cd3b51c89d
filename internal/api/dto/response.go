package dto

// Envelope is the uniform response shape for every endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SuccessResponse wraps a payload, optionally with a human-readable message.
func SuccessResponse(data interface{}, message string) Envelope {
	return Envelope{Success: true, Data: data, Message: message}
}

// ErrorResponse wraps a short machine-stable error string.
func ErrorResponse(message string) Envelope {
	return Envelope{Success: false, Error: message}
}
