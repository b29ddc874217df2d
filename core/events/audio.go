package events

const (
	KindAudio      Kind = "audio"
	KindAudioDone  Kind = "audio_done"
	KindClearAudio Kind = "clear_audio"
)

type Audio struct {
	Base
	Chunk []byte
}

func NewAudio(chunk []byte) Audio {
	return Audio{Base: NewBase(KindAudio), Chunk: chunk}
}

type AudioDone struct{ Base }

func NewAudioDone() AudioDone {
	return AudioDone{Base: NewBase(KindAudioDone)}
}

// ClearAudio tells the playback sink to drop everything it has queued.
type ClearAudio struct{ Base }

func NewClearAudio() ClearAudio {
	return ClearAudio{Base: NewBase(KindClearAudio)}
}
