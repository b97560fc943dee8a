// Package types holds the wire envelopes shared by every API response.
package types

// SuccessEnvelope wraps successful response bodies under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error shape.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
