package events

import "github.com/koscakluka/ema-dialogue/core/conversations"

const (
	KindTaskUpdate Kind = "task_update"
	KindTasks      Kind = "tasks"
)

type TaskUpdate struct {
	Base
	Task conversations.Task
}

func NewTaskUpdate(task conversations.Task) TaskUpdate {
	return TaskUpdate{Base: NewBase(KindTaskUpdate), Task: task}
}

type Tasks struct {
	Base
	Tasks []conversations.Task
}

func NewTasks(tasks []conversations.Task) Tasks {
	return Tasks{Base: NewBase(KindTasks), Tasks: tasks}
}
