package vfs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Firebreather-heart/sensei/internal/docstore"
	"github.com/Firebreather-heart/sensei/internal/logging"
	"github.com/Firebreather-heart/sensei/internal/metrics"
)

const filesCollection = "files"

// FileSystem manages the lifecycle of virtual files: CRUD, search, tree
// assembly and moves. It performs no ACL checks; those belong to the Gate.
type FileSystem struct {
	store docstore.Store
}

// NewFileSystem creates a FileSystem over a document store.
func NewFileSystem(store docstore.Store) *FileSystem {
	return &FileSystem{store: store}
}

// Create validates and persists a new file, seeding the owner into both
// ACLs and stamping server timestamps. The stored record is read back from
// the store rather than echoed, so storage-side field coercion is visible
// to the caller.
func (fs *FileSystem) Create(ctx context.Context, file *File) (*File, error) {
	if file.Directory && file.Content != nil {
		metrics.RecordFileOperation("create", false)
		return nil, &ValidationError{Reason: "directory cannot have content"}
	}
	if file.Name == "" {
		metrics.RecordFileOperation("create", false)
		return nil, &ValidationError{Reason: "name must not be empty"}
	}
	if file.Root == "" {
		metrics.RecordFileOperation("create", false)
		return nil, &ValidationError{Reason: "owner is required"}
	}

	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if !contains(file.CanView, file.Root) {
		file.CanView = append(file.CanView, file.Root)
	}
	if !contains(file.CanEdit, file.Root) {
		file.CanEdit = append(file.CanEdit, file.Root)
	}
	if file.Children == nil {
		file.Children = []string{}
	}

	now := time.Now().UTC()
	file.CreatedAt = now
	file.UpdatedAt = now

	if err := fs.store.Set(ctx, filesCollection, file.ID, file); err != nil {
		metrics.RecordFileOperation("create", false)
		return nil, fmt.Errorf("persist file: %w", err)
	}

	stored, err := fs.Get(ctx, file.ID)
	if err != nil {
		metrics.RecordFileOperation("create", false)
		if err == ErrNotFound {
			return nil, fmt.Errorf("%w: created file %s not readable", ErrStorage, file.ID)
		}
		return nil, err
	}

	metrics.RecordFileOperation("create", true)
	logging.Info("file created",
		zap.String("id", stored.ID),
		zap.String("owner", stored.Root),
		zap.Bool("directory", stored.Directory))
	return stored, nil
}

// Get returns a file by id, or ErrNotFound.
func (fs *FileSystem) Get(ctx context.Context, id string) (*File, error) {
	raw, err := fs.store.Get(ctx, filesCollection, id)
	if err == docstore.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return decodeFile(raw)
}

// UpdateContent overwrites a file's content and bumps its updated
// timestamp. The target is not checked to be a non-directory; callers are
// expected to ensure it.
func (fs *FileSystem) UpdateContent(ctx context.Context, id, content string) error {
	err := fs.store.Update(ctx, filesCollection, id, map[string]any{
		"content":    content,
		"updated_at": time.Now().UTC(),
	})
	if err == docstore.ErrNotFound {
		metrics.RecordFileOperation("update", false)
		return ErrNotFound
	}
	if err != nil {
		metrics.RecordFileOperation("update", false)
		return fmt.Errorf("update content: %w", err)
	}
	metrics.RecordFileOperation("update", true)
	return nil
}

// Delete removes a file by id. It does not cascade to children and does
// not detach the id from any parent's children array; tree consistency is
// the caller's concern.
func (fs *FileSystem) Delete(ctx context.Context, id string) error {
	if err := fs.store.Delete(ctx, filesCollection, id); err != nil {
		metrics.RecordFileOperation("delete", false)
		return fmt.Errorf("delete file: %w", err)
	}
	metrics.RecordFileOperation("delete", true)
	return nil
}

// ListForOwner returns every file owned by the given user.
func (fs *FileSystem) ListForOwner(ctx context.Context, owner string) ([]*File, error) {
	raws, err := fs.store.Query(ctx, filesCollection, "root", owner)
	if err != nil {
		return nil, fmt.Errorf("list files for %s: %w", owner, err)
	}
	return decodeFiles(raws)
}

// ListPublic returns up to limit public files, in storage order.
func (fs *FileSystem) ListPublic(ctx context.Context, limit int) ([]*File, error) {
	raws, err := fs.store.Query(ctx, filesCollection, "public", true)
	if err != nil {
		return nil, fmt.Errorf("list public files: %w", err)
	}
	files, err := decodeFiles(raws)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// ListSharedWith returns files shared with the given identity: the
// identity appears in can_view but does not own the file.
func (fs *FileSystem) ListSharedWith(ctx context.Context, identity string) ([]*File, error) {
	raws, err := fs.store.QueryContains(ctx, filesCollection, "can_view", identity)
	if err != nil {
		return nil, fmt.Errorf("list shared files: %w", err)
	}
	files, err := decodeFiles(raws)
	if err != nil {
		return nil, err
	}
	shared := files[:0]
	for _, f := range files {
		if f.Root != identity {
			shared = append(shared, f)
		}
	}
	return shared, nil
}

// Search finds files whose name or content contains query,
// case-insensitively. Three scans run in order: the actor's own files,
// files shared with the actor (when includeShared), and public files
// (when includePublic). Results are deduplicated by id in appearance
// order.
func (fs *FileSystem) Search(ctx context.Context, query, actor string, includeShared, includePublic bool) ([]*File, error) {
	seen := make(map[string]bool)
	var results []*File

	appendMatches := func(files []*File) {
		for _, f := range files {
			if seen[f.ID] || !matchesSearch(f, query) {
				continue
			}
			seen[f.ID] = true
			results = append(results, f)
		}
	}

	if actor != "" {
		own, err := fs.ListForOwner(ctx, actor)
		if err != nil {
			return nil, err
		}
		appendMatches(own)

		if includeShared {
			raws, err := fs.store.QueryContains(ctx, filesCollection, "can_view", actor)
			if err != nil {
				return nil, fmt.Errorf("search shared files: %w", err)
			}
			shared, err := decodeFiles(raws)
			if err != nil {
				return nil, err
			}
			appendMatches(shared)
		}
	}

	if includePublic {
		public, err := fs.ListPublic(ctx, 0)
		if err != nil {
			return nil, err
		}
		appendMatches(public)
	}

	metrics.RecordSearchResults(len(results))
	return results, nil
}

func matchesSearch(f *File, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(f.Name), q) {
		return true
	}
	if f.Content != nil && strings.Contains(strings.ToLower(*f.Content), q) {
		return true
	}
	return false
}

// BuildTree loads all of the owner's files and renders the hierarchy.
// Top-level nodes are those with no parent. Children are derived at read
// time from parent references rather than from the stored children
// arrays, so there is a single source of truth: a deleted or re-parented
// node simply stops appearing, and a stale child id left behind in a
// directory's children array is ignored.
func (fs *FileSystem) BuildTree(ctx context.Context, owner string) (*Tree, error) {
	files, err := fs.ListForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	byParent := make(map[string][]*File)
	roots := []*TreeNode{}
	for _, f := range files {
		if f.Parent != nil {
			byParent[*f.Parent] = append(byParent[*f.Parent], f)
		}
	}
	for _, f := range files {
		if f.Parent == nil {
			roots = append(roots, buildTreeNode(f, byParent))
		}
	}

	return &Tree{Username: owner, Tree: roots}, nil
}

func buildTreeNode(f *File, byParent map[string][]*File) *TreeNode {
	node := &TreeNode{
		ID:        f.ID,
		Name:      f.Name,
		Directory: f.Directory,
		Public:    f.Public,
		Children:  []*TreeNode{},
	}
	if f.Directory {
		for _, child := range byParent[f.ID] {
			node.Children = append(node.Children, buildTreeNode(child, byParent))
		}
	}
	return node
}

// Move re-parents a file. The target and the new parent must both exist
// and the new parent must be a directory. Neither the old nor the new
// parent's children array is rewritten; children arrays drift and
// BuildTree tolerates the dangling references.
func (fs *FileSystem) Move(ctx context.Context, id, newParentID string) error {
	if _, err := fs.Get(ctx, id); err != nil {
		metrics.RecordFileOperation("move", false)
		return err
	}
	parent, err := fs.Get(ctx, newParentID)
	if err != nil {
		metrics.RecordFileOperation("move", false)
		return err
	}
	if !parent.Directory {
		metrics.RecordFileOperation("move", false)
		return &ValidationError{Reason: "new parent is not a directory"}
	}

	err = fs.store.Update(ctx, filesCollection, id, map[string]any{
		"parent":     newParentID,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		metrics.RecordFileOperation("move", false)
		return fmt.Errorf("move file: %w", err)
	}
	metrics.RecordFileOperation("move", true)
	return nil
}

func decodeFile(raw docstore.Document) (*File, error) {
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	return &f, nil
}

func decodeFiles(raws []docstore.Document) ([]*File, error) {
	files := make([]*File, 0, len(raws))
	for _, raw := range raws {
		f, err := decodeFile(raw)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
