package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultURL             = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel           = "llama-3.3-70b-versatile"
	DefaultClassifierModel = "llama-3.1-8b-instant"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"

	classifierMaxTokens = 50
)

// Client talks to an OpenAI compatible chat completions endpoint, Groq by
// default.
type Client struct {
	apiKey string
	url    string

	model           string
	classifierModel string
	temperature     *float64
	maxTokens       int

	httpClient *http.Client
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithClassifierModel(model string) ClientOption {
	return func(c *Client) { c.classifierModel = model }
}

func WithTemperature(temperature float64) ClientOption {
	return func(c *Client) { c.temperature = &temperature }
}

func WithMaxTokens(maxTokens int) ClientOption {
	return func(c *Client) { c.maxTokens = maxTokens }
}

// WithURL points the client at another chat completions endpoint.
func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:          apiKey,
		url:             DefaultURL,
		model:           DefaultModel,
		classifierModel: DefaultClassifierModel,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify answers a single prompt with the classifier model.
func (c *Client) Classify(ctx context.Context, text string, instructions string) (string, error) {
	ctx, span := tracer.Start(ctx, "classify with groq")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.classifierModel))

	resp, err := c.post(ctx, span, requestBody{
		Model:     c.classifierModel,
		Messages:  append(toMessages(instructions, nil), message{Role: messageRoleUser, Content: text}),
		MaxTokens: classifierMaxTokens,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body responseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		err = fmt.Errorf("error decoding response: %w", err)
		span.RecordError(err)
		return "", err
	}
	if len(body.Choices) == 0 {
		return "", nil
	}
	if body.Usage != nil {
		setUsage(span, *body.Usage)
	}

	return strings.TrimSpace(body.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, span trace.Span, reqBody requestBody) (*http.Response, error) {
	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}

		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return resp, nil
}

func setUsage(span trace.Span, u usage) {
	span.SetAttributes(
		attribute.Int("usage.prompt", u.PromptTokens),
		attribute.Int("usage.completion", u.CompletionTokens),
		attribute.Int("usage.total", u.TotalTokens),
		attribute.Float64("usage.queue_time", u.QueueTime),
		attribute.Float64("usage.total_time", u.TotalTime),
	)
}
