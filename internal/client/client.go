package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dekkonot/open-cloud-execute/internal/config"
	"github.com/dekkonot/open-cloud-execute/internal/logger"
	"github.com/dekkonot/open-cloud-execute/internal/models"
)

const tracerName = "github.com/dekkonot/open-cloud-execute/internal/client"

// APIClient handles all HTTP communication with Open Cloud. It is safe for
// concurrent use; nothing in it changes after construction.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client with the given configuration
func NewAPIClient(cfg *config.Config) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: newHeaderTransport(http.DefaultTransport, config.UserAgent),
		},
	}
}

// BaseURL returns the endpoint root without a trailing slash
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// BuildURL constructs a full URL for a resource path such as a task path
func (c *APIClient) BuildURL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Get makes a GET request to rawURL and decodes the response into result
func (c *APIClient) Get(ctx context.Context, op string, key APIKey, rawURL string, result interface{}) error {
	return c.request(ctx, op, http.MethodGet, key, rawURL, nil, result)
}

// Post makes a POST request with a JSON body to rawURL and decodes the response into result
func (c *APIClient) Post(ctx context.Context, op string, key APIKey, rawURL string, body interface{}, result interface{}) error {
	return c.request(ctx, op, http.MethodPost, key, rawURL, body, result)
}

// request is the core HTTP request method. Failures are returned as *Error.
func (c *APIClient) request(ctx context.Context, op, method string, key APIKey, rawURL string, body interface{}, result interface{}) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "opencloud."+strings.ReplaceAll(op, " ", "_"),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", rawURL),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	logger.RequestStart(method, rawURL, key)

	var requestBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindTransport, Op: op, URL: rawURL, Message: "encoding request body", Err: err}
		}
		requestBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, requestBody)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, URL: rawURL, Message: "creating request", Err: err}
	}
	key.apply(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Request(method, rawURL, 0, time.Since(start), err)
		return &Error{Kind: KindTransport, Op: op, URL: rawURL, Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Request(method, rawURL, resp.StatusCode, time.Since(start), err)
		return &Error{Kind: KindTransport, Op: op, URL: rawURL, StatusCode: resp.StatusCode, Message: "reading response body", Err: err}
	}

	logger.Request(method, rawURL, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(op, rawURL, resp.StatusCode, bodyBytes)
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return &Error{Kind: KindTransport, Op: op, URL: rawURL, StatusCode: resp.StatusCode, Message: "decoding response", Err: err}
		}
	}

	return nil
}

// responseError turns a non-success response into a remote rejection, or into a
// transport failure when the error body itself cannot be decoded.
func responseError(op, rawURL string, status int, body []byte) error {
	payload, err := models.DecodeAPIErrorBody(body)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, URL: rawURL, StatusCode: status, Message: "decoding error response", Err: err}
	}
	return &Error{
		Kind:       KindRemoteRejection,
		Op:         op,
		URL:        rawURL,
		StatusCode: status,
		Code:       payload.Code,
		Message:    payload.Message,
	}
}

// unwrapURLError drops the *url.Error wrapper, whose message repeats the method and URL.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// BuildURLWithParams properly builds a URL with query parameters
func BuildURLWithParams(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	parts := strings.SplitN(endpoint, "?", 2)
	baseURL := parts[0]

	values := url.Values{}
	if len(parts) > 1 {
		existingParams, _ := url.ParseQuery(parts[1])
		values = existingParams
	}

	for key, value := range params {
		if value == "" {
			continue
		}
		values.Set(key, value)
	}

	if len(values) > 0 {
		return baseURL + "?" + values.Encode()
	}
	return baseURL
}
