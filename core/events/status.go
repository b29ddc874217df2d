package events

const KindStatus Kind = "status"

type StatusValue string

const (
	StatusListening      StatusValue = "listening"
	StatusThinking       StatusValue = "thinking"
	StatusSpeaking       StatusValue = "speaking"
	StatusInterrupted    StatusValue = "interrupted"
	StatusConfigUpdated  StatusValue = "config_updated"
	StatusHistoryCleared StatusValue = "history_cleared"
)

type Status struct {
	Base
	Value StatusValue
}

func NewStatus(value StatusValue) Status {
	return Status{Base: NewBase(KindStatus), Value: value}
}
