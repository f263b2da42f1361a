package repl

import (
	"reflect"
	"testing"
)

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter("order", "order list", "order get", "user list", "user  add", "order list")

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{"group", "order", []string{"order", "order get", "order list"}},
		{"subcommand", "order l", []string{"order list"}},
		{"collapsed spaces", "user a", []string{"user add"}},
		{"builtin", "ex", []string{"exit"}},
		{"no match", "session", nil},
		{"empty prefix", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Complete(tt.prefix)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Complete(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestCompleter_Known(t *testing.T) {
	c := NewCompleter("order list", "user list")

	tests := []struct {
		word string
		want bool
	}{
		{"order", true},
		{"user", true},
		{"history", true},
		{"list", false},
		{"ord", false},
	}

	for _, tt := range tests {
		if got := c.Known(tt.word); got != tt.want {
			t.Errorf("Known(%q) = %v, want %v", tt.word, got, tt.want)
		}
	}
}
