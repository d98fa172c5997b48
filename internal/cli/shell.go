package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/amirbrooks/tasklist/internal/tasklist"
	"github.com/amirbrooks/tasklist/internal/view"
)

// prompter reads line-oriented answers from in. The shell reuses the same
// reader for commands so a confirmation never swallows buffered input.
type prompter struct {
	r   *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{r: bufio.NewReader(in), out: out}
}

func (p *prompter) readLine() (string, bool) {
	line, err := p.r.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

// Confirm accepts y or yes; anything else, including EOF, declines.
func (p *prompter) Confirm(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, ok := p.readLine()
	if !ok {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

const shellHelp = `Commands:
  add <text>   append a task
  toggle <n>   flip task n between done and open
  done <n>     mark task n done
  rm <n>       delete task n
  clear        delete every task (asks first)
  ls           show the list
  help         show this help
  quit         leave the shell
`

func cmdShell(e *env, m *tasklist.Manager) int {
	p := newPrompter(e.in, e.out)
	ctx := context.Background()
	if !e.gf.Quiet {
		m.Render()
	}
	for {
		fmt.Fprint(e.out, "> ")
		line, ok := p.readLine()
		if !ok {
			fmt.Fprintln(e.out)
			return ExitOK
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)
		switch strings.ToLower(cmd) {
		case "":
			continue
		case "quit", "exit", "q":
			return ExitOK
		case "help", "?":
			fmt.Fprint(e.out, shellHelp)
		case "ls", "list":
			if e.gf.Quiet {
				fmt.Fprint(e.out, view.Format(tasklist.Lines(m.Tasks()), e.gf.Format))
			} else {
				m.Render()
			}
		case "add":
			if task, err := m.Add(ctx, arg); err != nil {
				reportErr(e, "add", err)
			} else {
				e.feedback("Task added: %q", task.Text)
			}
		case "toggle":
			shellIndexed(e, "toggle", arg, func(i int) (tasklist.Task, error) { return m.Toggle(ctx, i) })
		case "done", "complete":
			shellIndexed(e, "done", arg, func(i int) (tasklist.Task, error) { return m.Complete(ctx, i) })
		case "rm", "remove", "delete":
			shellIndexed(e, "rm", arg, func(i int) (tasklist.Task, error) { return m.Remove(ctx, i) })
		case "clear":
			var c tasklist.Confirmer = p
			if !e.cfg.ShouldConfirmClear() {
				c = tasklist.AlwaysConfirm
			}
			if err := m.Clear(ctx, c); err != nil {
				reportErr(e, "clear", err)
			} else {
				e.feedback("All tasks deleted.")
			}
		default:
			fmt.Fprintf(e.errOut, "unknown command %q (try help)\n", cmd)
		}
	}
}

func shellIndexed(e *env, name, arg string, op func(int) (tasklist.Task, error)) {
	idx, err := parsePosition(arg)
	if err != nil {
		fmt.Fprintf(e.errOut, "%s: %v\n", name, err)
		return
	}
	task, err := op(idx)
	if err != nil {
		reportErr(e, name, err)
		return
	}
	switch name {
	case "rm":
		e.feedback("Task deleted: %q", task.Text)
	default:
		if task.Completed {
			e.feedback("Task completed: %q", task.Text)
		} else {
			e.feedback("Task reopened: %q", task.Text)
		}
	}
}
