package vfs

import (
	"context"
	"errors"
	"testing"

	"github.com/Firebreather-heart/sensei/internal/docstore"
)

func newTestGate(t *testing.T) (*Gate, *FileSystem) {
	t.Helper()
	store := docstore.NewMemoryStore()
	fs := NewFileSystem(store)
	return NewGate(fs, NewACL(store)), fs
}

func TestGateMissingFileBeforeMissingActor(t *testing.T) {
	gate, _ := newTestGate(t)

	// With no file and no actor, the missing file wins.
	_, err := gate.Authorize(context.Background(), "", "no-such-id", ActionView)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestGateMissingActor(t *testing.T) {
	gate, fs := newTestGate(t)
	file := mustCreate(t, fs, &File{Root: "alice", Name: "notes.txt"})

	_, err := gate.Authorize(context.Background(), "", file.ID, ActionView)
	if !errors.Is(err, ErrMissingActor) {
		t.Errorf("want ErrMissingActor, got %v", err)
	}
}

func TestGateAuthorize(t *testing.T) {
	gate, fs := newTestGate(t)
	ctx := context.Background()

	file := mustCreate(t, fs, &File{
		Root:    "alice",
		Name:    "notes.txt",
		CanView: []string{"bob"},
	})

	tests := []struct {
		name   string
		actor  string
		action Action
		err    error
	}{
		{"owner view", "alice", ActionView, nil},
		{"owner edit", "alice", ActionEdit, nil},
		{"viewer view", "bob", ActionView, nil},
		{"viewer edit", "bob", ActionEdit, ErrForbidden},
		{"stranger view", "carol", ActionView, ErrForbidden},
		{"stranger edit", "carol", ActionEdit, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.Authorize(ctx, tt.actor, file.ID, tt.action)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if tt.err == nil && (got == nil || got.ID != file.ID) {
				t.Errorf("authorized call did not return the file")
			}
		})
	}
}

func TestGatePublicDoesNotBypassEvaluation(t *testing.T) {
	gate, fs := newTestGate(t)

	file := mustCreate(t, fs, &File{Root: "alice", Name: "notes.txt", Public: true})

	// The gate evaluates ACL membership only; public reads go through the
	// dedicated public endpoints.
	_, err := gate.Authorize(context.Background(), "bob", file.ID, ActionView)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("want ErrForbidden, got %v", err)
	}
}
