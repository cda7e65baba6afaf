package funding

// TopUpRequest captures the top-up form submitted by the user.
type TopUpRequest struct {
	Method   string `json:"method"`
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
}

// TopUpResponse is returned once the pending transaction is recorded.
type TopUpResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Display       string `json:"display"`
	SettlesAt     string `json:"settles_at"`
}
