package repl

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// secretFlags are masked before a line enters the history.
var secretFlags = []string{"--password", "--passphrase"}

const maskedSecret = "****"

// History manages command history for the REPL.
type History struct {
	entries []string
	maxSize int
	file    string
}

// NewHistory creates a History persisted at ~/.fieldstore/history.
func NewHistory() *History {
	homeDir, _ := os.UserHomeDir()
	return NewHistoryFile(filepath.Join(homeDir, ".fieldstore", "history"), 1000)
}

// NewHistoryFile creates a History persisted at file keeping at most
// maxSize entries.
func NewHistoryFile(file string, maxSize int) *History {
	return &History{
		entries: make([]string, 0),
		maxSize: maxSize,
		file:    file,
	}
}

// Add adds a command to history. Blank lines and a repeat of the last
// entry are ignored; values of secret flags are masked.
func (h *History) Add(cmd string) {
	cmd = MaskSecrets(strings.TrimSpace(cmd))
	if cmd == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return
	}
	h.entries = append(h.entries, cmd)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[1:]
	}
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Get returns the history entry at index (0 = most recent).
func (h *History) Get(index int) string {
	if index < 0 || index >= len(h.entries) {
		return ""
	}
	return h.entries[len(h.entries)-1-index]
}

// Load loads history from file.
func (h *History) Load() error {
	file, err := os.Open(h.file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		h.Add(scanner.Text())
	}
	return scanner.Err()
}

// Save saves history to file.
func (h *History) Save() error {
	dir := filepath.Dir(h.file)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	file, err := os.OpenFile(h.file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, entry := range h.entries {
		if _, err := file.WriteString(entry + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// MaskSecrets replaces the value of --password and --passphrase in a
// command line, in both "--flag value" and "--flag=value" forms.
func MaskSecrets(line string) string {
	fields := strings.Fields(line)
	masked := false
	for i := 0; i < len(fields); i++ {
		for _, flag := range secretFlags {
			switch {
			case fields[i] == flag && i+1 < len(fields):
				fields[i+1] = maskedSecret
				masked = true
				i++
			case strings.HasPrefix(fields[i], flag+"="):
				fields[i] = flag + "=" + maskedSecret
				masked = true
			}
		}
	}
	if !masked {
		return line
	}
	return strings.Join(fields, " ")
}
