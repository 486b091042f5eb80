package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// WebhookResult is the flat acknowledgement contract for inbound purchase
// webhooks. Upstream platforms only look at the HTTP status, but operators
// read the message when replaying deliveries by hand.
type WebhookResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
