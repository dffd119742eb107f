package model

type Todo struct {
	ID          string `json:"_id"`
	Text        string `json:"text"`
	Completed   bool   `json:"completed"`
	CompletedAt *int64 `json:"completedAt"`
	Creator     string `json:"_creator"`
	Ctime       int64  `json:"-"`
	Mtime       int64  `json:"-"`
}

// TodoPatch is a field-level update of a todo. Text is left unchanged when nil.
// CompletedAt must be nil unless Completed is true.
type TodoPatch struct {
	Text        *string
	Completed   bool
	CompletedAt *int64
	Mtime       int64
}
