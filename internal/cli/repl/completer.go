package repl

import (
	"sort"
	"strings"
)

// builtins are handled by the REPL itself.
var builtins = []string{"exit", "history", "quit"}

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
	roots    map[string]bool
}

// NewCompleter creates a Completer over full command paths such as
// "order list". Builtins are always included.
func NewCompleter(commands ...string) *Completer {
	c := &Completer{roots: make(map[string]bool)}
	seen := make(map[string]bool)
	for _, cmd := range append(append([]string(nil), commands...), builtins...) {
		cmd = strings.Join(strings.Fields(cmd), " ")
		if cmd == "" || seen[cmd] {
			continue
		}
		seen[cmd] = true
		c.commands = append(c.commands, cmd)
		c.roots[strings.Fields(cmd)[0]] = true
	}
	sort.Strings(c.commands)
	return c
}

// Complete returns completion suggestions for the given prefix. An empty
// prefix yields nothing.
func (c *Completer) Complete(prefix string) []string {
	if prefix == "" {
		return nil
	}
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether word is a top-level command or builtin.
func (c *Completer) Known(word string) bool {
	return c.roots[word]
}
