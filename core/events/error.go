package events

const KindError Kind = "error"

type Error struct {
	Base
	Err error
}

func NewError(err error) Error {
	return Error{Base: NewBase(KindError), Err: err}
}

func (e Error) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
