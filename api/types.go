package api

// DispenseRequest is the body of POST /api/v1/dispense.
type DispenseRequest struct {
	Address string `json:"address"`
}

// BalanceResponse wraps the per-token balance view for one recipient.
type BalanceResponse struct {
	Address string      `json:"address"`
	Tokens  interface{} `json:"tokens"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
