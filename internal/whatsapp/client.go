package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hostwise/whatsapp-concierge/pkg/logging"
)

var sendTracer = otel.Tracer("concierge.internal.whatsapp.send")

// Graph API error code for an expired access credential.
const errCodeTokenExpired = 190

// APIError is a structured error returned by the Graph API.
type APIError struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: graph api error %d (%s): %s", e.Code, e.Type, e.Message)
}

// TokenExpired reports whether the error indicates a revoked or expired
// access token, which requires operator action rather than a retry.
func (e *APIError) TokenExpired() bool {
	return e.Code == errCodeTokenExpired
}

// SendRequest carries everything needed to post one outbound text message.
// Credentials are per business account, so they travel with the request.
type SendRequest struct {
	PhoneNumberID string
	AccessToken   string
	To            string
	Body          string
}

// Client posts messages to the WhatsApp Business Cloud API.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a Graph API client. timeout bounds each send call.
func NewClient(baseURL, apiVersion string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" {
		baseURL = "https://graph.facebook.com"
	}
	if apiVersion == "" {
		apiVersion = "v18.0"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SendText dispatches a single text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, req SendRequest) (string, error) {
	if strings.TrimSpace(req.AccessToken) == "" {
		return "", errors.New("whatsapp: access token required")
	}
	if strings.TrimSpace(req.PhoneNumberID) == "" {
		return "", errors.New("whatsapp: phone number id required")
	}
	if strings.TrimSpace(req.To) == "" {
		return "", errors.New("whatsapp: to required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return "", errors.New("whatsapp: body required")
	}

	ctx, span := sendTracer.Start(ctx, "whatsapp.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("concierge.phone_number_id", req.PhoneNumberID),
		attribute.String("concierge.to", req.To),
	)

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                req.To,
		"type":              "text",
		"text":              map[string]string{"body": req.Body},
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("whatsapp: marshal send payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, req.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("whatsapp: build send request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("whatsapp: send request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed struct {
			Error APIError `json:"error"`
		}
		if len(respBody) > 0 && json.Unmarshal(respBody, &parsed) == nil && parsed.Error.Code != 0 {
			apiErr := parsed.Error
			span.RecordError(&apiErr)
			c.logger.Error("graph api send failed", "status", resp.StatusCode, "code", apiErr.Code, "to", req.To)
			return "", &apiErr
		}
		err := fmt.Errorf("whatsapp: send failed: status %d", resp.StatusCode)
		span.RecordError(err)
		return "", err
	}

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Messages) == 0 {
		return "", errors.New("whatsapp: send response missing message id")
	}

	c.logger.Info("whatsapp message sent", "to", req.To, "provider_message_id", parsed.Messages[0].ID)
	return parsed.Messages[0].ID, nil
}
