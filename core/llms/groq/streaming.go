package groq

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-dialogue/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

// Generate streams the next assistant message token by token.
func (c *Client) Generate(ctx context.Context, history []llms.Message, instructions string) llms.TokenStream {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "generate with groq")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", c.model))

		requestStart := time.Now()
		resp, err := c.post(ctx, span, requestBody{
			Model:       c.model,
			Messages:    toMessages(instructions, history),
			Stream:      true,
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		})
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		firstToken := true
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
			if len(chunk) == 0 {
				continue
			}
			if chunk == endMessage {
				break
			}

			var responseBody streamingResponseBody
			if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
				logger.Warn("skipping malformed stream chunk", "error", err)
				span.RecordError(err)
				continue
			}

			if responseBody.XGroq != nil && responseBody.XGroq.Usage != nil {
				setUsage(span, *responseBody.XGroq.Usage)
			} else if responseBody.Usage != nil {
				setUsage(span, *responseBody.Usage)
			}

			if len(responseBody.Choices) == 0 {
				continue
			}
			content := responseBody.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			if firstToken {
				firstToken = false
				span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestStart).Seconds()))
				span.AddEvent("received first chunk")
			}
			if !yield(content, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("error reading streamed response: %w", err))
		}
	}
}
