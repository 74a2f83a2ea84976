package handler

import "time"

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Details   string `json:"details,omitempty"`
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message, details string) *ErrorResponse {
	return &ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// AmountRequest is the optional body of increment and decrement. The
// amount is decoded as a float so that 1.5 is reported as an invalid
// amount rather than a malformed body.
type AmountRequest struct {
	Amount *float64 `json:"amount"`
}

// CountResponse is the body of GET /api/connection-counter/.
type CountResponse struct {
	Count int `json:"count"`
}

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Error   string `json:"error,omitempty"`
}
