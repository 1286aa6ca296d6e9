package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/errorx"
	"github.com/girderhq/girder/internal/credential"
	"github.com/girderhq/girder/internal/provider"
	"github.com/girderhq/girder/internal/ratelimit"
	"github.com/girderhq/girder/pkg/metrics"
	"github.com/girderhq/girder/pkg/trace"
	"github.com/girderhq/girder/pkg/utils"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Request describes one outbound provider API call. Path is relative to the
// environment's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header
}

// Response is the raw provider reply for a 2xx status.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Gateway is the single choke point for outbound provider traffic. Every call
// passes the rate limiter, the vault and the refresher, in that order, before
// any network I/O happens.
type Gateway struct {
	registry  *provider.Registry
	vault     *credential.Vault
	refresher *provider.Refresher
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
	capture   trace.CaptureConfig
	logger    *zap.Logger
	client    *http.Client
}

// New creates a gateway.
func New(registry *provider.Registry, vault *credential.Vault, refresher *provider.Refresher,
	limiter *ratelimit.Limiter, m *metrics.Metrics, capture trace.CaptureConfig, logger *zap.Logger) *Gateway {
	return &Gateway{
		registry:  registry,
		vault:     vault,
		refresher: refresher,
		limiter:   limiter,
		metrics:   m,
		capture:   capture,
		logger:    logger.Named("gateway"),
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Call performs one provider API call for (providerName, identity). Failures
// surface as errorx categories; no retries happen at this layer, and a
// rate-limit unit consumed by a caller that later gives up is not refunded.
func (g *Gateway) Call(ctx context.Context, providerName, identity string, req *Request) (*Response, error) {
	prov, err := g.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	decision := g.limiter.Consume(providerName + "/" + identity)
	if !decision.Allowed {
		g.metrics.RateLimitDenied(providerName)
		return nil, &errorx.RateLimitedError{
			RetryAfter: decision.RetryAfter,
			Remaining:  decision.Remaining,
		}
	}

	cred, err := g.vault.Get(ctx, providerName, identity)
	if err != nil {
		return nil, err
	}
	token, err := g.refresher.EnsureFresh(ctx, cred)
	if err != nil {
		return nil, err
	}
	endpoint, err := prov.Endpoint(cred.Environment)
	if err != nil {
		return nil, err
	}

	scope := trace.Tracer(cnst.TraceGateway).Start(ctx, cnst.SpanProviderCall).WithAttrs(
		attribute.String(cnst.AttrProvider, providerName),
		attribute.String(cnst.AttrIdentity, identity),
		attribute.String(cnst.AttrEnvironment, cred.Environment.String()),
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
	)
	defer scope.End()
	if g.capture.DownstreamRequest.Enabled {
		scope.WithAttrs(g.requestAttrs(req.Body)...)
	}

	httpReq, err := g.buildRequest(scope.Ctx, prov, endpoint.BaseURL, token, cred, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errorx.ErrValidation, err)
	}

	callCtx, cancel := context.WithTimeout(scope.Ctx, prov.Timeout)
	defer cancel()
	httpReq = httpReq.WithContext(callCtx)

	start := time.Now()
	g.metrics.ProviderCallStart(providerName)
	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.metrics.ProviderCallDone(providerName, cred.Environment.String(), "network_error", start)
		g.logger.Warn("provider call failed before a response",
			zap.String("provider", providerName),
			zap.String("identity", identity),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", errorx.ErrNetworkTimeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.metrics.ProviderCallDone(providerName, cred.Environment.String(), "network_error", start)
		return nil, fmt.Errorf("%w: reading response: %v", errorx.ErrNetworkTimeout, err)
	}
	g.metrics.ProviderCallDone(providerName, cred.Environment.String(), strconv.Itoa(resp.StatusCode), start)
	scope.WithAttrs(attribute.Int(cnst.AttrHTTPStatusCode, resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{
			StatusCode: resp.StatusCode,
			Body:       body,
			Header:     resp.Header,
		}, nil
	}
	if g.capture.DownstreamError.Enabled {
		scope.WithAttrs(attribute.String(cnst.AttrErrorBody,
			truncateForSpan(string(body), g.capture.DownstreamError.MaxBodyLength)))
	}
	return nil, g.mapStatus(providerName, identity, resp.StatusCode, body)
}

// requestAttrs builds the capture attributes for an outbound request body.
func (g *Gateway) requestAttrs(body []byte) []attribute.KeyValue {
	capture := g.capture.DownstreamRequest
	var attrs []attribute.KeyValue
	if capture.BodyEnabled && len(body) > 0 {
		attrs = append(attrs, attribute.String(cnst.AttrRequestBody,
			truncateForSpan(string(body), capture.BodyMaxLength)))
	}
	for name, path := range capture.IncludeFields {
		if result := gjson.GetBytes(body, path); result.Exists() {
			attrs = append(attrs, attribute.String(name,
				truncateForSpan(result.String(), capture.MaxFieldLength)))
		}
	}
	return attrs
}

// truncateForSpan caps a captured value; max <= 0 means no cap.
func truncateForSpan(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

func (g *Gateway) buildRequest(ctx context.Context, prov *provider.Provider, baseURL, token string,
	cred *credential.Credential, req *Request) (*http.Request, error) {
	target := strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	// Callers may pin a different company than the stored default.
	company := utils.Coalesce(req.Header.Get(prov.CompanyHeader), cred.CompanyID)
	if company != "" {
		httpReq.Header.Set(prov.CompanyHeader, company)
	}
	return httpReq, nil
}

func (g *Gateway) mapStatus(providerName, identity string, status int, body []byte) error {
	message := extractMessage(body, status)
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", errorx.ErrAuthFailed, message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", errorx.ErrForbidden, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", errorx.ErrNotFound, message)
	case http.StatusTooManyRequests:
		// Our own limiter should keep us under the provider's quota.
		g.logger.Warn("provider rate limited the call",
			zap.String("provider", providerName),
			zap.String("identity", identity))
		return &errorx.APIError{StatusCode: status, Body: body, Message: message}
	default:
		return &errorx.APIError{StatusCode: status, Body: body, Message: message}
	}
}

// extractMessage pulls a human-readable reason out of a provider error body.
func extractMessage(body []byte, status int) string {
	for _, path := range []string{"message", "error_description", "error.message", "errors.0.message", "error"} {
		if result := gjson.GetBytes(body, path); result.Type == gjson.String && result.Str != "" {
			return result.Str
		}
	}
	return http.StatusText(status)
}
