package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultPrompt is the shell prompt.
const DefaultPrompt = "fieldstore> "

// ExecFunc runs one parsed command line.
type ExecFunc func(ctx context.Context, args []string) error

// Config configures a REPL.
type Config struct {
	In     io.Reader
	Out    io.Writer
	Prompt string

	// Commands seeds the completer with full command paths.
	Commands []string

	// History is the persisted history. Default: NewHistory().
	History *History

	// Exec runs each non-builtin line.
	Exec ExecFunc
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	completer *Completer
	history   *History
	exec      ExecFunc
}

// New creates a new REPL instance.
func New(cfg Config) *REPL {
	r := &REPL{
		input:     cfg.In,
		output:    cfg.Out,
		prompt:    cfg.Prompt,
		completer: NewCompleter(cfg.Commands...),
		history:   cfg.History,
		exec:      cfg.Exec,
	}
	if r.input == nil {
		r.input = os.Stdin
	}
	if r.output == nil {
		r.output = os.Stdout
	}
	if r.prompt == "" {
		r.prompt = DefaultPrompt
	}
	if r.history == nil {
		r.history = NewHistory()
	}
	return r
}

// Run starts the REPL loop. It returns on exit, EOF or ctx end.
func (r *REPL) Run(ctx context.Context) error {
	reader := bufio.NewReader(r.input)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err == io.EOF && strings.TrimSpace(line) == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.history.Add(line)

		if line == "exit" || line == "quit" {
			return nil
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

func (r *REPL) execute(ctx context.Context, line string) error {
	args, err := Split(line)
	if err != nil {
		return err
	}

	if args[0] == "history" {
		for i := r.history.Len() - 1; i >= 0; i-- {
			fmt.Fprintf(r.output, "%4d  %s\n", r.history.Len()-i, r.history.Get(i))
		}
		return nil
	}

	if !r.completer.Known(args[0]) {
		msg := fmt.Sprintf("unknown command %q", args[0])
		if s := r.completer.Complete(args[0]); len(s) > 0 {
			msg += ", did you mean: " + strings.Join(s, ", ")
		}
		return errors.New(msg)
	}

	if r.exec == nil {
		return nil
	}
	return r.exec(ctx, args)
}

// Split breaks a line into words. Single and double quotes group words;
// a backslash escapes the next character outside single quotes.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
			inWord = true
		case ch == ' ' || ch == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(ch)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}
