// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"eshop/internal/pkg/nacos"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Client 是一个可追踪的HTTP客户端，超时完全由调用方的 context 控制
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	Discovery  nacos.Discovery
}

// StatusError 下游返回了非 2xx
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

func NewClient(tracer trace.Tracer, discovery nacos.Discovery) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
		Discovery:  discovery,
	}
}

// Post 以 query 参数的方式调用下游
func (c *Client) Post(ctx context.Context, serviceURL string, params url.Values) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return err
	}
	q := parsedURL.Query()
	for key, values := range params {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	parsedURL.RawQuery = q.Encode()

	return c.do(ctx, http.MethodPost, parsedURL, nil, nil)
}

// PostJSON 发送 JSON 请求体，out 不为 nil 时解析响应
func (c *Client) PostJSON(ctx context.Context, serviceURL string, body, out any) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, parsedURL, payload, out)
}

// CallService 通过 Nacos 发现服务实例后以 JSON 调用 path
func (c *Client) CallService(ctx context.Context, serviceName, path string, body, out any) error {
	if c.Discovery == nil {
		return fmt.Errorf("no service discovery configured for %s", serviceName)
	}
	ip, port, err := c.Discovery.DiscoverServiceInstance(serviceName)
	if err != nil {
		return err
	}
	return c.PostJSON(ctx, fmt.Sprintf("http://%s:%d%s", ip, port, path), body, out)
}

func (c *Client) do(ctx context.Context, method string, target *url.URL, payload []byte, out any) error {
	spanName := fmt.Sprintf("call-%s", strings.Split(target.Host, ":")[0])
	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	span.SetAttributes(
		attribute.String("http.url", target.String()),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := &StatusError{URL: target.String(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to decode response from %s: %w", target.String(), err)
		}
	}
	return nil
}
