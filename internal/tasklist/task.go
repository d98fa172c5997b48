package tasklist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalid    = errors.New("invalid")
	ErrEmptyText  = fmt.Errorf("%w: task text is required", ErrInvalid)
	ErrOutOfRange = errors.New("index out of range")
	ErrDeclined   = errors.New("declined")
)

// IndexError reports an index outside the current sequence.
// It still satisfies errors.Is(err, ErrOutOfRange).
type IndexError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	if e == nil {
		return ErrOutOfRange.Error()
	}
	if e.Len == 0 {
		return fmt.Sprintf("%s: index %d out of range (list is empty)", e.Op, e.Index)
	}
	return fmt.Sprintf("%s: index %d out of range [0,%d)", e.Op, e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Task is a single to-do record. The persisted form is exactly these two fields.
type Task struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Line is one rendered row handed to a View.
type Line struct {
	Position  int
	Completed bool
	Text      string
}

func (l Line) Marker() string {
	if l.Completed {
		return "[x]"
	}
	return "[ ]"
}

func (l Line) String() string {
	return fmt.Sprintf("%d. %s %s", l.Position, l.Marker(), l.Text)
}

// Lines builds the 1-based display rows for tasks, in order.
func Lines(tasks []Task) []Line {
	out := make([]Line, 0, len(tasks))
	for i, t := range tasks {
		out = append(out, Line{Position: i + 1, Completed: t.Completed, Text: t.Text})
	}
	return out
}

// Encode serializes tasks to the persisted JSON array form.
func Encode(tasks []Task) (string, error) {
	if tasks == nil {
		tasks = []Task{}
	}
	b, err := json.Marshal(tasks)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses the persisted form. A JSON null decodes to an empty list.
func Decode(s string) ([]Task, error) {
	var tasks []Task
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}
