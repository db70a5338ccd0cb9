package vfs

import (
	"context"
	"fmt"
	"time"

	"github.com/Firebreather-heart/sensei/internal/docstore"
)

// ACL resolves view/edit eligibility and mutates the per-file permission
// lists. Grants and revokes read-modify-write the whole array with no
// optimistic concurrency control; two concurrent mutations on the same
// file can lose one update. That matches the single-document storage
// model and is accepted, not papered over.
type ACL struct {
	store docstore.Store
}

// NewACL creates an ACL resolver over a document store.
func NewACL(store docstore.Store) *ACL {
	return &ACL{store: store}
}

// Permissions is the view/edit snapshot for one identity on one file.
type Permissions struct {
	CanView bool `json:"can_view"`
	CanEdit bool `json:"can_edit"`
}

// CanView reports whether identity is in the file's view list. Public
// visibility is not special-cased here; callers check File.Public.
func (a *ACL) CanView(identity string, f *File) bool {
	return contains(f.CanView, identity)
}

// CanEdit reports whether identity is in the file's edit list.
func (a *ACL) CanEdit(identity string, f *File) bool {
	return contains(f.CanEdit, identity)
}

// Permissions returns the snapshot for the identity/file pair.
func (a *ACL) Permissions(identity string, f *File) Permissions {
	return Permissions{
		CanView: a.CanView(identity, f),
		CanEdit: a.CanEdit(identity, f),
	}
}

// GrantView adds identity to the view list. Granting an identity that is
// already present is a no-op.
func (a *ACL) GrantView(ctx context.Context, identity string, f *File) error {
	if contains(f.CanView, identity) {
		return nil
	}
	f.CanView = append(f.CanView, identity)
	return a.persist(ctx, f, "can_view", f.CanView)
}

// GrantEdit adds identity to the edit list. Idempotent like GrantView.
func (a *ACL) GrantEdit(ctx context.Context, identity string, f *File) error {
	if contains(f.CanEdit, identity) {
		return nil
	}
	f.CanEdit = append(f.CanEdit, identity)
	return a.persist(ctx, f, "can_edit", f.CanEdit)
}

// RevokeView removes identity from the view list. Revoking an absent
// identity is a no-op.
func (a *ACL) RevokeView(ctx context.Context, identity string, f *File) error {
	if !contains(f.CanView, identity) {
		return nil
	}
	f.CanView = without(f.CanView, identity)
	return a.persist(ctx, f, "can_view", f.CanView)
}

// RevokeEdit removes identity from the edit list. Idempotent like RevokeView.
func (a *ACL) RevokeEdit(ctx context.Context, identity string, f *File) error {
	if !contains(f.CanEdit, identity) {
		return nil
	}
	f.CanEdit = without(f.CanEdit, identity)
	return a.persist(ctx, f, "can_edit", f.CanEdit)
}

func (a *ACL) persist(ctx context.Context, f *File, field string, list []string) error {
	f.UpdatedAt = time.Now().UTC()
	err := a.store.Update(ctx, filesCollection, f.ID, map[string]any{
		field:        list,
		"updated_at": f.UpdatedAt,
	})
	if err == docstore.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("persist %s: %w", field, err)
	}
	return nil
}
