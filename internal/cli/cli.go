package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/amirbrooks/tasklist/internal/config"
	"github.com/amirbrooks/tasklist/internal/export"
	"github.com/amirbrooks/tasklist/internal/kv"
	"github.com/amirbrooks/tasklist/internal/tasklist"
	"github.com/amirbrooks/tasklist/internal/view"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitInternal = 10
)

type GlobalFlags struct {
	Root    string
	Backend string
	DSN     string
	Key     string
	Format  string
	Quiet   bool
	Verbose bool
	Yes     bool
}

// env carries everything a command needs. Commands never touch os.Std*.
type env struct {
	gf     GlobalFlags
	cfg    config.Config
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger
}

func reorderFlags(args []string, takesValue map[string]bool) []string {
	if len(args) == 0 {
		return args
	}
	var flags []string
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				rest = append(rest, args[i+1:]...)
			}
			break
		}
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			flags = append(flags, a)
			if takesValue[a] && !strings.Contains(a, "=") {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(flags, rest...)
}

func Run(args []string) int {
	return RunIO(args, os.Stdin, os.Stdout, os.Stderr)
}

// RunIO is Run with explicit streams.
func RunIO(args []string, in io.Reader, out, errOut io.Writer) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(errOut, err.Error())
		return ExitUsage
	}
	if len(rest) == 0 {
		printHelp(errOut)
		return ExitUsage
	}
	cmd := rest[0]
	cmdArgs := rest[1:]

	switch cmd {
	case "help", "--help", "-h":
		printHelp(out)
		return ExitOK
	case "init":
		return cmdInit(gf, out, errOut)
	case "config", "cfg":
		// set must work even when the current file does not validate.
		if len(cmdArgs) > 0 && cmdArgs[0] == "set" {
			return cmdConfigSet(gf, cmdArgs[1:], out, errOut)
		}
	}

	cfg, err := config.Load(gf.Root)
	if err != nil {
		fmt.Fprintln(errOut, "tasklist:", err)
		return ExitUsage
	}
	applyFlagOverrides(&cfg, gf)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, "tasklist:", err)
		return ExitUsage
	}
	e := &env{gf: gf, cfg: cfg, in: in, out: out, errOut: errOut, log: newLogger(errOut, gf)}

	switch cmd {
	case "config", "cfg":
		return cmdConfig(e, cmdArgs)
	case "add":
		return withManager(e, "add", func(m *tasklist.Manager) int { return cmdAdd(e, m, cmdArgs) })
	case "ls", "list":
		return withManager(e, "ls", func(m *tasklist.Manager) int { return cmdList(e, m, cmdArgs) })
	case "toggle":
		return withManager(e, "toggle", func(m *tasklist.Manager) int { return cmdToggle(e, m, cmdArgs) })
	case "done", "complete":
		return withManager(e, "done", func(m *tasklist.Manager) int { return cmdDone(e, m, cmdArgs) })
	case "rm", "remove", "delete":
		return withManager(e, "rm", func(m *tasklist.Manager) int { return cmdRemove(e, m, cmdArgs) })
	case "clear":
		return withManager(e, "clear", func(m *tasklist.Manager) int { return cmdClear(e, m, cmdArgs) })
	case "export":
		return withManager(e, "export", func(m *tasklist.Manager) int { return cmdExport(e, m, cmdArgs) })
	case "shell":
		return withManager(e, "shell", func(m *tasklist.Manager) int { return cmdShell(e, m) })
	default:
		fmt.Fprintf(errOut, "Unknown command: %s\n\n", cmd)
		printHelp(errOut)
		return ExitUsage
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `tasklist — a small to-do list kept in a local key-value store

Usage:
  tasklist [global flags] <command> [args]

Global flags:
  --root <path>      Store root (default: ~/.tasklist or TASKLIST_ROOT)
  --backend <name>   file|sqlite|mysql|memory (default from config.yaml, else file)
  --dsn <dsn>        Backend location: data dir, sqlite file or mysql DSN
  --key <key>        Store key holding the list (default: tasks)
  --format <f>       plain|tsv|telegram (default: plain)
  --yes              Skip the confirmation prompt for clear
  --quiet
  --verbose

Commands:
  init
  config show
  config set <key> <value>
  add "<text>"
  ls
  toggle <n>
  done <n>
  rm <n>
  clear [--yes]
  export [--format json|pdf]
  shell

<n> is the 1-based position shown by ls.
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{Root: config.DefaultRoot()}

	out := make([]string, 0, len(args))
	skip := 0
	value := func(i int, name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", name)
		}
		skip = 1
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		a := args[i]
		if a == "--" {
			// Everything after -- belongs to the command.
			out = append(out, args[i:]...)
			break
		}
		var err error
		switch a {
		case "--root":
			gf.Root, err = value(i, a)
		case "--backend":
			gf.Backend, err = value(i, a)
		case "--dsn":
			gf.DSN, err = value(i, a)
		case "--key":
			gf.Key, err = value(i, a)
		case "--yes", "-y":
			gf.Yes = true
		case "--quiet":
			gf.Quiet = true
		case "--verbose":
			gf.Verbose = true
		case "--format":
			// export has its own --format.
			if len(out) > 0 && out[0] == "export" {
				out = append(out, a)
				continue
			}
			gf.Format, err = value(i, a)
		default:
			out = append(out, a)
		}
		if err != nil {
			return gf, nil, err
		}
	}

	if gf.Quiet && gf.Verbose {
		return gf, nil, errors.New("--quiet and --verbose are mutually exclusive")
	}
	f, err := view.ParseFormat(gf.Format)
	if err != nil {
		return gf, nil, err
	}
	gf.Format = f
	return gf, out, nil
}

func applyFlagOverrides(cfg *config.Config, gf GlobalFlags) {
	if strings.TrimSpace(gf.Backend) != "" {
		cfg.Backend = strings.ToLower(strings.TrimSpace(gf.Backend))
	}
	if strings.TrimSpace(gf.DSN) != "" {
		cfg.DSN = strings.TrimSpace(gf.DSN)
	}
	if strings.TrimSpace(gf.Key) != "" {
		cfg.Key = strings.TrimSpace(gf.Key)
	}
}

func newLogger(w io.Writer, gf GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	if gf.Verbose {
		level = slog.LevelDebug
	}
	if gf.Quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withManager opens the configured store, loads the list and runs fn.
func withManager(e *env, name string, fn func(m *tasklist.Manager) int) int {
	ctx := context.Background()
	st, err := kv.Open(ctx, e.cfg.Backend, e.cfg.DSN, e.cfg.Root)
	if err != nil {
		fmt.Fprintf(e.errOut, "%s: %v\n", name, err)
		return ExitInternal
	}
	opts := []tasklist.Option{tasklist.WithKey(e.cfg.Key), tasklist.WithLogger(e.log)}
	if !e.gf.Quiet {
		opts = append(opts, tasklist.WithView(view.NewText(e.out, e.gf.Format)))
	}
	m := tasklist.New(st, opts...)
	defer func() {
		if err := m.Close(); err != nil {
			e.log.Warn("close store", "err", err)
		}
	}()
	if err := m.Load(ctx); err != nil {
		fmt.Fprintf(e.errOut, "%s: %v\n", name, err)
		return ExitInternal
	}
	e.log.Debug("store opened", "backend", e.cfg.Backend, "key", m.Key())
	return fn(m)
}

func cmdInit(gf GlobalFlags, out, errOut io.Writer) int {
	wrote, err := config.Init(gf.Root)
	if err != nil {
		fmt.Fprintln(errOut, "init:", err)
		return ExitInternal
	}
	if gf.Quiet {
		return ExitOK
	}
	if wrote {
		fmt.Fprintln(out, "Initialized", config.Path(gf.Root))
	} else {
		fmt.Fprintln(out, "Already initialized:", config.Path(gf.Root))
	}
	return ExitOK
}

func cmdConfig(e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.errOut, "Usage: tasklist config <show|set> ...")
		return ExitUsage
	}
	switch args[0] {
	case "show":
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"root":          e.cfg.Root,
			"backend":       e.cfg.Backend,
			"key":           e.cfg.Key,
			"dsn":           e.cfg.DSN,
			"export_dir":    e.cfg.ExportPath(),
			"confirm_clear": e.cfg.ShouldConfirmClear(),
		})
		return ExitOK
	default:
		fmt.Fprintln(e.errOut, "Usage: tasklist config <show|set> ...")
		return ExitUsage
	}
}

// cmdConfigSet edits config.yaml as written, so env and flag overrides are
// not persisted.
func cmdConfigSet(gf GlobalFlags, args []string, out, errOut io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintf(errOut, "Usage: tasklist config set <%s> <value>\n", strings.Join(config.Keys(), "|"))
		return ExitUsage
	}
	cfg, err := config.LoadFile(gf.Root)
	if err != nil {
		fmt.Fprintln(errOut, "config:", err)
		return ExitUsage
	}
	if err := cfg.Set(args[0], args[1]); err != nil {
		fmt.Fprintln(errOut, "config:", err)
		return ExitUsage
	}
	if err := config.Save(cfg.Root, cfg); err != nil {
		fmt.Fprintln(errOut, "config:", err)
		return ExitInternal
	}
	if !gf.Quiet {
		fmt.Fprintf(out, "Set %s = %s\n", strings.ToLower(args[0]), strings.TrimSpace(args[1]))
	}
	return ExitOK
}

func cmdAdd(e *env, m *tasklist.Manager, args []string) int {
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	task, err := m.Add(context.Background(), strings.Join(args, " "))
	if err != nil {
		return reportErr(e, "add", err)
	}
	e.feedback("Task added: %q", task.Text)
	return ExitOK
}

func cmdList(e *env, m *tasklist.Manager, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(e.errOut, "Usage: tasklist ls")
		return ExitUsage
	}
	if e.gf.Quiet {
		// Quiet suppresses rendering, but an explicit ls still prints.
		fmt.Fprint(e.out, view.Format(tasklist.Lines(m.Tasks()), e.gf.Format))
		return ExitOK
	}
	m.Render()
	return ExitOK
}

func cmdToggle(e *env, m *tasklist.Manager, args []string) int {
	idx, code := positionArg(e, "toggle", args)
	if code != ExitOK {
		return code
	}
	task, err := m.Toggle(context.Background(), idx)
	if err != nil {
		return reportErr(e, "toggle", err)
	}
	if task.Completed {
		e.feedback("Task completed: %q", task.Text)
	} else {
		e.feedback("Task reopened: %q", task.Text)
	}
	return ExitOK
}

func cmdDone(e *env, m *tasklist.Manager, args []string) int {
	idx, code := positionArg(e, "done", args)
	if code != ExitOK {
		return code
	}
	task, err := m.Complete(context.Background(), idx)
	if err != nil {
		return reportErr(e, "done", err)
	}
	e.feedback("Task completed: %q", task.Text)
	return ExitOK
}

func cmdRemove(e *env, m *tasklist.Manager, args []string) int {
	idx, code := positionArg(e, "rm", args)
	if code != ExitOK {
		return code
	}
	task, err := m.Remove(context.Background(), idx)
	if err != nil {
		return reportErr(e, "rm", err)
	}
	e.feedback("Task deleted: %q", task.Text)
	return ExitOK
}

func cmdClear(e *env, m *tasklist.Manager, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(e.errOut, "Usage: tasklist clear [--yes]")
		return ExitUsage
	}
	var c tasklist.Confirmer = newPrompter(e.in, e.out)
	if e.gf.Yes || !e.cfg.ShouldConfirmClear() {
		c = tasklist.AlwaysConfirm
	}
	if err := m.Clear(context.Background(), c); err != nil {
		return reportErr(e, "clear", err)
	}
	e.feedback("All tasks deleted.")
	return ExitOK
}

func cmdExport(e *env, m *tasklist.Manager, args []string) int {
	args = reorderFlags(args, map[string]bool{"--format": true, "--dir": true})
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	format := fs.String("format", export.FormatJSON, "Export format (json|pdf)")
	dir := fs.String("dir", "", "Export directory (default: <root>/exports)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	outDir := strings.TrimSpace(*dir)
	if outDir == "" {
		outDir = e.cfg.ExportPath()
	}
	snap := export.NewSnapshot(m.Key(), m.Tasks())
	path, err := export.Write(outDir, snap, *format)
	if err != nil {
		fmt.Fprintln(e.errOut, "export:", err)
		return ExitInternal
	}
	if !e.gf.Quiet {
		fmt.Fprintln(e.out, "Wrote export to:", path)
	}
	return ExitOK
}

func (e *env) feedback(format string, args ...any) {
	if e.gf.Quiet {
		return
	}
	fmt.Fprintf(e.out, format+"\n", args...)
}

// positionArg converts a 1-based position argument into an index.
func positionArg(e *env, name string, args []string) (int, int) {
	if len(args) != 1 {
		fmt.Fprintf(e.errOut, "Usage: tasklist %s <n>\n", name)
		return 0, ExitUsage
	}
	idx, err := parsePosition(args[0])
	if err != nil {
		fmt.Fprintf(e.errOut, "%s: %v\n", name, err)
		return 0, ExitUsage
	}
	return idx, ExitOK
}

func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ".")))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return n - 1, nil
}

// reportErr prints a user-facing message for err and maps it to an exit code.
func reportErr(e *env, name string, err error) int {
	var ie *tasklist.IndexError
	switch {
	case errors.Is(err, tasklist.ErrEmptyText):
		fmt.Fprintf(e.errOut, "%s: please enter a task\n", name)
		return ExitUsage
	case errors.As(err, &ie):
		fmt.Fprintf(e.errOut, "%s: invalid position %d (have %d tasks)\n", name, ie.Index+1, ie.Len)
		return ExitNotFound
	case errors.Is(err, tasklist.ErrDeclined):
		if !e.gf.Quiet {
			fmt.Fprintln(e.out, "Cancelled.")
		}
		return ExitOK
	default:
		fmt.Fprintf(e.errOut, "%s: %v\n", name, err)
		return ExitInternal
	}
}
