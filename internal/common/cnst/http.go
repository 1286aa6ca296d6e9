package cnst

// HTTP header names shared between the server and gateway layers
const (
	// HeaderWebhookSignature carries the webhook timestamp/HMAC pair
	HeaderWebhookSignature = "X-Webhook-Signature"
	// HeaderCompanyID is the default company-scoping header for provider
	// API calls; providers may override it in configuration
	HeaderCompanyID = "X-Company-Id"
	// HeaderRetryAfter is set on rate-limited responses
	HeaderRetryAfter = "Retry-After"
)
