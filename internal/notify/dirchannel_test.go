package notify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
)

func TestDirChannel_PublishWritesEventFile(t *testing.T) {
	dir := t.TempDir()
	ch, err := NewDirChannel(DirConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewDirChannel() error = %v", err)
	}

	e := Event{ID: NewID(time.Now()), Name: UsersChanged, Family: domain.FamilyUsers, Reason: "x", Origin: "a"}
	if err := ch.Publish(e); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	path := filepath.Join(dir, "fieldstore-users-channel", e.ID+".json")
	got, err := readEvent(path)
	if err != nil {
		t.Fatalf("readEvent() error = %v", err)
	}
	if got != e {
		t.Errorf("event = %+v, want %+v", got, e)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "fieldstore-users-channel"))
	if len(entries) != 1 {
		t.Errorf("channel dir has %d entries, want 1 (no temp leftovers)", len(entries))
	}
}

func TestDirChannel_ListenAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	sender, err := NewDirChannel(DirConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	receiver, err := NewDirChannel(DirConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- receiver.Listen(ctx, func(e Event) { received <- e })
	}()

	// The watcher registers asynchronously; publish until one arrives.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-received:
			if e.Name != OrdersChanged || e.Origin != "sender" {
				t.Errorf("received %+v", e)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Listen() error = %v", err)
			}
			return
		case <-ticker.C:
			e := Event{ID: NewID(time.Now()), Name: OrdersChanged, Family: domain.FamilyOrders, Origin: "sender"}
			if err := sender.Publish(e); err != nil {
				t.Fatal(err)
			}
		case <-timeout:
			t.Fatal("no event received across instances")
		}
	}
}

func TestDirChannel_Prune(t *testing.T) {
	dir := t.TempDir()
	ch, err := NewDirChannel(DirConfig{Dir: dir, KeepEvents: time.Minute})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	old := Event{ID: NewID(now.Add(-time.Hour)), Name: UsersChanged, Family: domain.FamilyUsers}
	fresh := Event{ID: NewID(now), Name: UsersChanged, Family: domain.FamilyUsers}
	for _, e := range []Event{old, fresh} {
		if err := ch.Publish(e); err != nil {
			t.Fatal(err)
		}
	}

	ch.nowFunc = func() time.Time { return now }
	ch.Prune()

	usersDir := filepath.Join(dir, "fieldstore-users-channel")
	if _, err := os.Stat(filepath.Join(usersDir, old.ID+".json")); !os.IsNotExist(err) {
		t.Error("old event should be pruned")
	}
	if _, err := os.Stat(filepath.Join(usersDir, fresh.ID+".json")); err != nil {
		t.Errorf("fresh event should stay: %v", err)
	}
}

func TestNewDirChannel_RequiresDir(t *testing.T) {
	if _, err := NewDirChannel(DirConfig{}); err == nil {
		t.Error("NewDirChannel() with empty dir should fail")
	}
}
