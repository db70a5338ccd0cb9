package vfs

import (
	"context"

	"github.com/Firebreather-heart/sensei/internal/metrics"
)

// Action is the kind of access a guarded operation needs.
type Action string

const (
	ActionView Action = "view"
	ActionEdit Action = "edit"
)

// Gate authorizes an action on a file before the operation executes. It
// composes the FileSystem (to resolve the target) with the ACL resolver
// (to evaluate eligibility). Ownership is not implicit membership: the
// create-time seeding of the owner into both lists is what grants owner
// access, and a stripped ACL locks out even the owner.
type Gate struct {
	fs  *FileSystem
	acl *ACL
}

// NewGate creates a Gate over a FileSystem and ACL resolver.
func NewGate(fs *FileSystem, acl *ACL) *Gate {
	return &Gate{fs: fs, acl: acl}
}

// Authorize resolves the target file and evaluates the actor's
// eligibility for the action. It returns the file on success, so the
// guarded operation does not re-fetch it. Failure modes, in order:
// ErrNotFound (no such file), ErrMissingActor (no identity),
// ErrForbidden (evaluation false).
func (g *Gate) Authorize(ctx context.Context, actor, fileID string, action Action) (*File, error) {
	file, err := g.fs.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if actor == "" {
		return nil, ErrMissingActor
	}

	var allowed bool
	switch action {
	case ActionView:
		allowed = g.acl.CanView(actor, file)
	case ActionEdit:
		allowed = g.acl.CanEdit(actor, file)
	}

	metrics.RecordPermissionCheck(allowed)
	if !allowed {
		return nil, ErrForbidden
	}
	return file, nil
}
