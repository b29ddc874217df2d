package conversations

// Task is a goal the assistant works towards during the conversation. Tasks
// are created from the session configuration and are only ever marked done,
// never removed.
type Task struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// NewTasks builds a task list from caller supplied definitions. An id of 0
// means unset: such a task gets its 1-based position as id, or the next id
// above every id in use when its position is already taken. A repeated id is
// treated as unset, so ids in the result are unique.
func NewTasks(definitions []Task) []Task {
	taken := make(map[int]bool, len(definitions))
	highest := 0
	for _, definition := range definitions {
		highest = max(highest, definition.ID)
	}

	tasks := make([]Task, 0, len(definitions))
	var unset []int
	for i, definition := range definitions {
		if definition.ID == 0 || taken[definition.ID] {
			definition.ID = 0
			unset = append(unset, i)
		} else {
			taken[definition.ID] = true
		}
		tasks = append(tasks, definition)
	}

	for _, i := range unset {
		id := i + 1
		if taken[id] {
			highest++
			id = highest
		}
		taken[id] = true
		tasks[i].ID = id
	}
	return tasks
}
