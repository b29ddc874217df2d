package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/koscakluka/ema-dialogue/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultModel           = "claude-haiku-4-5-20251001"
	DefaultClassifierModel = "claude-haiku-4-5-20251001"
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 500

	classifierMaxTokens = 50
)

// Client generates responses with the Anthropic Messages API.
type Client struct {
	client anthropic.Client

	model           string
	classifierModel string
	temperature     float64
	maxTokens       int64
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	model           string
	classifierModel string
	temperature     float64
	maxTokens       int64
	baseURL         string
	httpClient      *http.Client
	maxRetries      *int
}

func WithModel(model string) ClientOption {
	return func(o *clientOptions) { o.model = model }
}

// WithClassifierModel sets the model used by [Client.Classify]. A small, fast
// model keeps the retrieval check off the critical path.
func WithClassifierModel(model string) ClientOption {
	return func(o *clientOptions) { o.classifierModel = model }
}

func WithTemperature(temperature float64) ClientOption {
	return func(o *clientOptions) { o.temperature = temperature }
}

func WithMaxTokens(maxTokens int) ClientOption {
	return func(o *clientOptions) {
		if maxTokens > 0 {
			o.maxTokens = int64(maxTokens)
		}
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = httpClient }
}

func WithMaxRetries(maxRetries int) ClientOption {
	return func(o *clientOptions) { o.maxRetries = &maxRetries }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	options := clientOptions{
		model:           DefaultModel,
		classifierModel: DefaultClassifierModel,
		temperature:     DefaultTemperature,
		maxTokens:       DefaultMaxTokens,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(&options)
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(options.httpClient),
	}
	if options.baseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(options.baseURL))
	}
	if options.maxRetries != nil {
		requestOptions = append(requestOptions, option.WithMaxRetries(*options.maxRetries))
	}

	return &Client{
		client:          anthropic.NewClient(requestOptions...),
		model:           options.model,
		classifierModel: options.classifierModel,
		temperature:     options.temperature,
		maxTokens:       options.maxTokens,
	}
}

// Generate streams the text of the next assistant message.
//
// The instructions are sent as a cached system block; they only change when
// the task list or the configuration does.
func (c *Client) Generate(ctx context.Context, history []llms.Message, instructions string) llms.TokenStream {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "generate with anthropic")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.model", c.model),
			attribute.Int("request.messages", len(history)),
		)

		params := anthropic.MessageNewParams{
			Model:       anthropic.Model(c.model),
			MaxTokens:   c.maxTokens,
			Temperature: anthropic.Float(c.temperature),
			Messages:    toMessageParams(history),
		}
		if instructions != "" {
			params.System = []anthropic.TextBlockParam{{
				Text:         instructions,
				CacheControl: anthropic.NewCacheControlEphemeralParam(),
			}}
		}

		requestStart := time.Now()
		firstToken := true
		stream := c.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "content_block_delta":
				delta, ok := event.AsContentBlockDelta().Delta.AsAny().(anthropic.TextDelta)
				if !ok || delta.Text == "" {
					continue
				}
				if firstToken {
					firstToken = false
					span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestStart).Seconds()))
				}
				if !yield(delta.Text, nil) {
					return
				}

			case "message_delta":
				usage := event.AsMessageDelta().Usage
				span.SetAttributes(attribute.Int64("usage.output", usage.OutputTokens))

			case "message_stop":
				return
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() == nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				logger.Error("anthropic stream failed", "model", c.model, "error", err)
			}
			yield("", fmt.Errorf("anthropic stream failed: %w", err))
		}
	}
}

// Classify answers a single prompt with the classifier model.
func (c *Client) Classify(ctx context.Context, text string, instructions string) (string, error) {
	ctx, span := tracer.Start(ctx, "classify with anthropic")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.classifierModel))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.classifierModel),
		MaxTokens: classifierMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(text))},
	}
	if instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: instructions}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		err = fmt.Errorf("anthropic classification failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var output strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			output.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(output.String()), nil
}

func toMessageParams(history []llms.Message) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, message := range history {
		if message.Content == "" {
			continue
		}

		switch message.Role {
		case llms.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message.Content)))
		case llms.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(message.Content)))
		}
	}
	return messages
}
