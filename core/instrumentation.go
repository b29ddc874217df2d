package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-dialogue/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

// Instruments fall back to no-ops when the meter cannot create them.
var (
	turnCounter, _ = meter.Int64Counter("dialogue.turns",
		metric.WithDescription("Processing cycles started"))
	interruptionCounter, _ = meter.Int64Counter("dialogue.interruptions",
		metric.WithDescription("Barge-ins that cancelled an active response"))
	echoCounter, _ = meter.Int64Counter("dialogue.echo_drops",
		metric.WithDescription("Transcripts dropped as the assistant's own speech"))
	retrievalCounter, _ = meter.Int64Counter("dialogue.retrievals",
		metric.WithDescription("Turns that folded retrieved references into the user message"))
)
