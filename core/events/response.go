package events

const (
	KindPartialResponse Kind = "partial_response"
	KindAgentResponse   Kind = "agent_response"
)

// PartialResponse carries the whole response text generated so far, not a
// delta.
type PartialResponse struct {
	Base
	Text string
}

func NewPartialResponse(text string) PartialResponse {
	return PartialResponse{Base: NewBase(KindPartialResponse), Text: text}
}

// AgentResponse carries the final response text. Interrupted responses end
// with " [interrupted]".
type AgentResponse struct {
	Base
	Text        string
	Interrupted bool
}

func NewAgentResponse(text string, interrupted bool) AgentResponse {
	return AgentResponse{Base: NewBase(KindAgentResponse), Text: text, Interrupted: interrupted}
}
