// Package tasklist owns an ordered to-do sequence, mirrors it to a key-value
// store after every mutation and pushes rendered lines to registered views.
package tasklist

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	DefaultKey  = "tasks"
	ClearPrompt = "Are you sure you want to delete all tasks?"
)

// Store is the persistence the manager writes through to.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// View receives the full rendered list after every change.
type View interface {
	Render(lines []Line)
}

type ViewFunc func(lines []Line)

func (f ViewFunc) Render(lines []Line) { f(lines) }

// Confirmer gates destructive operations.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// AlwaysConfirm accepts every prompt.
var AlwaysConfirm Confirmer = ConfirmFunc(func(string) bool { return true })

type Option func(*Manager)

func WithKey(key string) Option {
	return func(m *Manager) {
		if strings.TrimSpace(key) != "" {
			m.key = strings.TrimSpace(key)
		}
	}
}

func WithView(v View) Option {
	return func(m *Manager) {
		if v != nil {
			m.views = append(m.views, v)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

type Manager struct {
	mu    sync.Mutex
	store Store
	key   string
	views []View
	log   *slog.Logger
	tasks []Task
}

func New(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		key:   DefaultKey,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tasks: []Task{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Key() string { return m.key }

// Load replaces the in-memory sequence with the persisted one. A missing value
// leaves the list empty; an undecodable value is logged and also yields an
// empty list. Only store errors are returned.
func (m *Manager) Load(ctx context.Context) error {
	raw, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	tasks := []Task{}
	if ok && strings.TrimSpace(raw) != "" {
		decoded, err := Decode(raw)
		if err != nil {
			m.log.Warn("stored task list is unreadable; starting empty", "key", m.key, "err", err)
		} else {
			tasks = decoded
		}
	}
	m.mu.Lock()
	m.tasks = tasks
	m.mu.Unlock()
	m.log.Debug("loaded tasks", "key", m.key, "count", len(tasks))
	return nil
}

// Tasks returns a copy of the current sequence.
func (m *Manager) Tasks() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Task(nil), m.tasks...)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manager) Add(ctx context.Context, text string) (Task, error) {
	// Invalid bytes are replaced here so the stored JSON and memory agree.
	text = strings.TrimSpace(strings.ToValidUTF8(text, "\uFFFD"))
	if text == "" {
		return Task{}, ErrEmptyText
	}
	t := Task{Text: text}
	err := m.mutate(ctx, "add", func(tasks []Task) ([]Task, error) {
		return append(tasks, t), nil
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (m *Manager) Toggle(ctx context.Context, index int) (Task, error) {
	var out Task
	err := m.mutate(ctx, "toggle", func(tasks []Task) ([]Task, error) {
		if err := checkIndex("toggle", index, len(tasks)); err != nil {
			return nil, err
		}
		tasks[index].Completed = !tasks[index].Completed
		out = tasks[index]
		return tasks, nil
	})
	return out, err
}

// Complete marks the task at index done. Completing a done task is a no-op
// that still persists and renders.
func (m *Manager) Complete(ctx context.Context, index int) (Task, error) {
	var out Task
	err := m.mutate(ctx, "complete", func(tasks []Task) ([]Task, error) {
		if err := checkIndex("complete", index, len(tasks)); err != nil {
			return nil, err
		}
		tasks[index].Completed = true
		out = tasks[index]
		return tasks, nil
	})
	return out, err
}

func (m *Manager) Remove(ctx context.Context, index int) (Task, error) {
	var out Task
	err := m.mutate(ctx, "remove", func(tasks []Task) ([]Task, error) {
		if err := checkIndex("remove", index, len(tasks)); err != nil {
			return nil, err
		}
		out = tasks[index]
		return append(tasks[:index], tasks[index+1:]...), nil
	})
	return out, err
}

// Clear empties the list once c accepts ClearPrompt. A nil Confirmer declines.
func (m *Manager) Clear(ctx context.Context, c Confirmer) error {
	if c == nil || !c.Confirm(ClearPrompt) {
		return ErrDeclined
	}
	return m.mutate(ctx, "clear", func([]Task) ([]Task, error) {
		return []Task{}, nil
	})
}

// Render pushes the current lines to every view.
func (m *Manager) Render() {
	m.mu.Lock()
	lines := Lines(m.tasks)
	m.mu.Unlock()
	m.notify(lines)
}

// Close releases the store when it holds resources.
func (m *Manager) Close() error {
	if c, ok := m.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// mutate applies fn to a working copy, persists it and only then commits it,
// so memory never runs ahead of the store.
func (m *Manager) mutate(ctx context.Context, op string, fn func([]Task) ([]Task, error)) error {
	m.mu.Lock()
	next, err := fn(append([]Task(nil), m.tasks...))
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if next == nil {
		next = []Task{}
	}
	raw, err := Encode(next)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := m.store.Set(ctx, m.key, raw); err != nil {
		m.mu.Unlock()
		m.log.Error("persist failed", "op", op, "key", m.key, "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	m.tasks = next
	lines := Lines(next)
	m.mu.Unlock()

	m.log.Debug("tasks updated", "op", op, "count", len(lines))
	m.notify(lines)
	return nil
}

func (m *Manager) notify(lines []Line) {
	for _, v := range m.views {
		v.Render(lines)
	}
}

func checkIndex(op string, index, n int) error {
	if index < 0 || index >= n {
		return &IndexError{Op: op, Index: index, Len: n}
	}
	return nil
}
