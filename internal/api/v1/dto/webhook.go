package dto

type WebhookResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
