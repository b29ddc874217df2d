package events

const (
	KindPartialTranscript Kind = "partial_transcript"
	KindUserTranscript    Kind = "user_transcript"
)

type PartialTranscript struct {
	Base
	Text string
}

func NewPartialTranscript(text string) PartialTranscript {
	return PartialTranscript{Base: NewBase(KindPartialTranscript), Text: text}
}

type UserTranscript struct {
	Base
	Text string
}

func NewUserTranscript(text string) UserTranscript {
	return UserTranscript{Base: NewBase(KindUserTranscript), Text: text}
}
