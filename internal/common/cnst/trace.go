package cnst

// Tracer names used across the services
const (
	// TraceGateway is the tracer name for outbound provider calls
	TraceGateway = "girder/gateway"
	// TraceAuth is the tracer name for the authorization server
	TraceAuth = "girder/auth"
	// TraceWebhook is the tracer name for inbound webhook verification
	TraceWebhook = "girder/webhook"
)

// Common span names and prefixes
const (
	// SpanProviderCall represents one outbound call to the provider API
	SpanProviderCall = "provider.call"

	// SpanTokenRefresh represents a refresh-token exchange with the provider
	SpanTokenRefresh = "provider.token_refresh"

	// SpanWebhookVerify represents inbound webhook signature verification
	SpanWebhookVerify = "webhook.verify"
)

// Common attribute keys
const (
	AttrProvider       = "girder.provider"
	AttrIdentity       = "girder.identity"
	AttrEnvironment    = "girder.environment"
	AttrHTTPStatusCode = "http.status_code"
	AttrErrorReason    = "error.reason"
	AttrClientAddr     = "client.remote_addr"
	AttrWebhookEvent   = "webhook.event"
	AttrRequestBody    = "girder.request_body"
	AttrErrorBody      = "girder.error_body"
)
