package vfs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Firebreather-heart/sensei/internal/logging"
)

// UserResolver answers whether a username belongs to a real identity.
// Satisfied by the identity service.
type UserResolver interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// Sharing implements the owner-only sharing workflow: share, revoke and
// visibility toggles. Every operation verifies ownership and reports
// failure as a bare false, never an error: "target not found" and "not
// owner" are swallowed deliberately, and callers must check the boolean.
type Sharing struct {
	fs    *FileSystem
	acl   *ACL
	users UserResolver
}

// NewSharing creates a Sharing workflow over its collaborators.
func NewSharing(fs *FileSystem, acl *ACL, users UserResolver) *Sharing {
	return &Sharing{fs: fs, acl: acl, users: users}
}

// ShareResult is the per-user outcome of ShareWithMany.
type ShareResult struct {
	Username string `json:"username"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

// ShareFile grants the target user the requested permissions ("view",
// "edit") on the file. A grant of "edit" also grants "view". Returns
// false if the target user does not exist, the file does not exist, or
// owner does not own the file.
func (s *Sharing) ShareFile(ctx context.Context, owner, fileID, target string, permissions []string) bool {
	exists, err := s.users.UsernameExists(ctx, target)
	if err != nil {
		logging.Error("share: user lookup failed", zap.String("target", target), zap.Error(err))
		return false
	}
	if !exists {
		logging.Warn("share: target user not found", zap.String("target", target))
		return false
	}

	file, ok := s.ownedFile(ctx, owner, fileID)
	if !ok {
		return false
	}

	if contains(permissions, "view") {
		if err := s.acl.GrantView(ctx, target, file); err != nil {
			logging.Error("share: grant view failed", zap.String("file", fileID), zap.Error(err))
			return false
		}
	}
	if contains(permissions, "edit") {
		if err := s.acl.GrantEdit(ctx, target, file); err != nil {
			logging.Error("share: grant edit failed", zap.String("file", fileID), zap.Error(err))
			return false
		}
		// Editors can always view, even when "view" was not requested.
		if err := s.acl.GrantView(ctx, target, file); err != nil {
			logging.Error("share: grant view failed", zap.String("file", fileID), zap.Error(err))
			return false
		}
	}

	logging.Info("file shared",
		zap.String("file", fileID),
		zap.String("owner", owner),
		zap.String("target", target),
		zap.Strings("permissions", permissions))
	return true
}

// ShareWithMany shares the file with several users and reports the
// outcome for each.
func (s *Sharing) ShareWithMany(ctx context.Context, owner, fileID string, targets []string, permissions []string) []ShareResult {
	results := make([]ShareResult, 0, len(targets))
	for _, target := range targets {
		ok := s.ShareFile(ctx, owner, fileID, target, permissions)
		msg := "shared successfully"
		if !ok {
			msg = "failed to share"
		}
		results = append(results, ShareResult{Username: target, Success: ok, Message: msg})
	}
	return results
}

// RevokeAccess removes the target user from both permission lists.
// Returns false if the file does not exist or owner does not own it.
func (s *Sharing) RevokeAccess(ctx context.Context, owner, fileID, target string) bool {
	file, ok := s.ownedFile(ctx, owner, fileID)
	if !ok {
		return false
	}

	if err := s.acl.RevokeView(ctx, target, file); err != nil {
		logging.Error("revoke: view failed", zap.String("file", fileID), zap.Error(err))
		return false
	}
	if err := s.acl.RevokeEdit(ctx, target, file); err != nil {
		logging.Error("revoke: edit failed", zap.String("file", fileID), zap.Error(err))
		return false
	}

	logging.Info("access revoked",
		zap.String("file", fileID),
		zap.String("owner", owner),
		zap.String("target", target))
	return true
}

// MakePublic marks the file publicly visible. Owner only.
func (s *Sharing) MakePublic(ctx context.Context, owner, fileID string) bool {
	return s.setPublic(ctx, owner, fileID, true)
}

// MakePrivate removes public visibility. Owner only.
func (s *Sharing) MakePrivate(ctx context.Context, owner, fileID string) bool {
	return s.setPublic(ctx, owner, fileID, false)
}

func (s *Sharing) setPublic(ctx context.Context, owner, fileID string, public bool) bool {
	if _, ok := s.ownedFile(ctx, owner, fileID); !ok {
		return false
	}

	err := s.fs.store.Update(ctx, filesCollection, fileID, map[string]any{
		"public":     public,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		logging.Error("visibility update failed", zap.String("file", fileID), zap.Error(err))
		return false
	}

	logging.Info("file visibility changed",
		zap.String("file", fileID),
		zap.Bool("public", public))
	return true
}

// ownedFile loads the file and checks ownership; false covers both "not
// found" and "not owner".
func (s *Sharing) ownedFile(ctx context.Context, owner, fileID string) (*File, bool) {
	file, err := s.fs.Get(ctx, fileID)
	if err != nil {
		logging.Warn("sharing: file not found", zap.String("file", fileID))
		return nil, false
	}
	if file.Root != owner {
		logging.Warn("sharing: not the owner",
			zap.String("file", fileID),
			zap.String("actor", owner),
			zap.String("owner", file.Root))
		return nil, false
	}
	return file, true
}
