package llms

import (
	"context"
	"iter"
	"strings"
)

// TokenStream yields generated text tokens in order. A non-nil error ends the
// stream; cancelling the context passed to the generator must unblock any
// pending read.
type TokenStream = iter.Seq2[string, error]

// Collect drains a token stream into a single string. It stops early when ctx
// is done.
func Collect(ctx context.Context, stream TokenStream) (string, error) {
	var sb strings.Builder
	for token, err := range stream {
		if err != nil {
			return sb.String(), err
		}
		if ctx.Err() != nil {
			return sb.String(), ctx.Err()
		}
		sb.WriteString(token)
	}
	return sb.String(), nil
}
