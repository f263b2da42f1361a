package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
)

// Defaults for DirChannel.
const (
	DefaultKeepEvents = 10 * time.Minute
	defaultPruneEvery = time.Minute
)

// DirConfig configures a DirChannel.
type DirConfig struct {
	// Dir is the broadcast root shared by cooperating processes.
	Dir string
	// KeepEvents is how long event files stay on disk.
	KeepEvents time.Duration
	// Logger is the structured logger.
	Logger *slog.Logger
}

// DirChannel is a cross-process broadcast channel over a shared
// directory. Each family has its own sub-directory named after its
// channel; each event is one JSON file named by the event ID.
type DirChannel struct {
	dir     string
	keep    time.Duration
	pruner  *rate.Limiter
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewDirChannel creates the channel directories.
func NewDirChannel(cfg DirConfig) (*DirChannel, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("notify: broadcast dir is required")
	}
	if cfg.KeepEvents <= 0 {
		cfg.KeepEvents = DefaultKeepEvents
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &DirChannel{
		dir:     cfg.Dir,
		keep:    cfg.KeepEvents,
		pruner:  rate.NewLimiter(rate.Every(defaultPruneEvery), 1),
		logger:  cfg.Logger,
		nowFunc: time.Now,
	}
	for _, f := range []domain.Family{domain.FamilyUsers, domain.FamilyOrders} {
		if err := os.MkdirAll(c.channelDir(f), 0o755); err != nil {
			return nil, fmt.Errorf("notify: create channel dir: %w", err)
		}
	}
	return c, nil
}

func (c *DirChannel) channelDir(f domain.Family) string {
	return filepath.Join(c.dir, ChannelName(f))
}

// Publish writes e into its family channel. The file appears atomically
// (temp file + rename) so watchers never read partial events.
func (c *DirChannel) Publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	dir := c.channelDir(e.Family)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("notify: create event file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("notify: write event file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("notify: close event file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, e.ID+".json")); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("notify: publish event file: %w", err)
	}

	if c.pruner.Allow() {
		c.Prune()
	}
	return nil
}

// Prune removes event files older than the keep window. Returns the
// number of files removed.
func (c *DirChannel) Prune() int {
	cutoff := c.nowFunc().Add(-c.keep)
	removed := 0
	for _, f := range []domain.Family{domain.FamilyUsers, domain.FamilyOrders} {
		dir := c.channelDir(f)
		entries, err := os.ReadDir(dir)
		if err != nil {
			c.logger.Warn("read channel dir failed", "dir", dir, "error", err)
			continue
		}
		for _, entry := range entries {
			id, ok := eventID(entry.Name())
			if !ok {
				continue
			}
			created, ok := idTime(id)
			if !ok || created.After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		c.logger.Debug("pruned broadcast events", "removed", removed)
	}
	return removed
}

// Listen watches every channel and calls fn for each event published
// after Listen started. It blocks until ctx is done.
func (c *DirChannel) Listen(ctx context.Context, fn func(Event)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("notify: create watcher: %w", err)
	}
	defer w.Close()

	for _, f := range []domain.Family{domain.FamilyUsers, domain.FamilyOrders} {
		dir := c.channelDir(f)
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("notify: watch %s: %w", dir, err)
		}
		c.logger.Debug("watching broadcast channel", "channel", ChannelName(f), "dir", dir)
	}

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Rename into place surfaces as Create.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if _, ok := eventID(filepath.Base(event.Name)); !ok {
				continue
			}
			e, err := readEvent(event.Name)
			if err != nil {
				// Pruned before we got to it, or not an event file.
				c.logger.Debug("skip broadcast file", "file", event.Name, "error", err)
				continue
			}
			fn(e)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("broadcast watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// eventID returns the ID of an event file name ("<ulid>.json").
func eventID(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	return strings.TrimSuffix(name, ".json"), true
}

func readEvent(path string) (Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Event{}, err
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if e.Name == "" || e.Family == "" {
		return Event{}, fmt.Errorf("incomplete event")
	}
	return e, nil
}
