package utils

// Envelope is the single typed response shape every endpoint returns. Clients
// validate it once at the reconciliation boundary instead of shape-sniffing.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func SuccessResponse(message string, data interface{}) Envelope {
	return Envelope{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(message, detail string) Envelope {
	return Envelope{
		Success: false,
		Message: message,
		Error:   detail,
	}
}
