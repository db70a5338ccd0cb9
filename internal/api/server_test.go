package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Firebreather-heart/sensei/internal/docstore"
	"github.com/Firebreather-heart/sensei/internal/identity"
	"github.com/Firebreather-heart/sensei/internal/vfs"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store := docstore.NewMemoryStore()
	ids := identity.New(store, "test-secret")
	fs := vfs.NewFileSystem(store)
	acl := vfs.NewACL(store)
	gate := vfs.NewGate(fs, acl)
	sharing := vfs.NewSharing(fs, acl, ids)
	return NewServer(ids, fs, acl, gate, sharing, 50).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// signup registers a user and returns a bearer token for them.
func signup(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	email := username + "@example.com"
	rec := doJSON(t, h, "POST", "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, "POST", "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, rec.Code, rec.Body.String())
	}
	var token struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, rec, &token)
	return token.AccessToken
}

func createFile(t *testing.T, h http.Handler, token string, body map[string]any) vfs.File {
	t.Helper()
	rec := doJSON(t, h, "POST", "/api/v1/fs/files", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create file: status %d: %s", rec.Code, rec.Body.String())
	}
	var file vfs.File
	decode(t, rec, &file)
	return file
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"short username", map[string]string{"username": "ab", "email": "a@example.com", "password": "password123"}},
		{"bad email", map[string]string{"username": "alice", "email": "nope", "password": "password123"}},
		{"short password", map[string]string{"username": "alice", "email": "a@example.com", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, "POST", "/api/v1/auth/register", "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRegisterConflictResponse(t *testing.T) {
	h := newTestHandler(t)
	signup(t, h, "alice")

	rec := doJSON(t, h, "POST", "/api/v1/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &body)
	if _, ok := body.Fields["username"]; !ok {
		t.Errorf("conflict response missing username field: %+v", body)
	}
}

func TestProtectedRequiresToken(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, "GET", "/api/v1/fs/user/files", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, "GET", "/api/v1/fs/user/files", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestFileLifecycle(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")

	dir := createFile(t, h, alice, map[string]any{"name": "src", "directory": true})
	file := createFile(t, h, alice, map[string]any{
		"name": "main.txt", "parent": dir.ID, "content": "hello",
	})
	if file.Root != "alice" {
		t.Errorf("root = %q, want alice", file.Root)
	}

	// read it back
	rec := doJSON(t, h, "GET", "/api/v1/fs/files/"+file.ID, alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d: %s", rec.Code, rec.Body.String())
	}

	// update content
	rec = doJSON(t, h, "PUT", "/api/v1/fs/files/"+file.ID, alice, map[string]string{"content": "world"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d: %s", rec.Code, rec.Body.String())
	}
	var updated vfs.File
	decode(t, rec, &updated)
	if updated.Content == nil || *updated.Content != "world" {
		t.Errorf("content = %v, want world", updated.Content)
	}

	// tree shows src/main.txt
	rec = doJSON(t, h, "GET", "/api/v1/fs/user/tree", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tree: status %d", rec.Code)
	}
	var tree vfs.Tree
	decode(t, rec, &tree)
	if len(tree.Tree) != 1 || tree.Tree[0].Name != "src" {
		t.Fatalf("unexpected roots: %+v", tree.Tree)
	}
	if len(tree.Tree[0].Children) != 1 || tree.Tree[0].Children[0].Name != "main.txt" {
		t.Errorf("unexpected children: %+v", tree.Tree[0].Children)
	}

	// delete
	rec = doJSON(t, h, "DELETE", "/api/v1/fs/files/"+file.ID, alice, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, h, "GET", "/api/v1/fs/files/"+file.ID, alice, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestCreateDirectoryWithContentRejected(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")

	rec := doJSON(t, h, "POST", "/api/v1/fs/files", alice, map[string]any{
		"name": "docs", "directory": true, "content": "nope",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSharingFlow(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")
	bob := signup(t, h, "bob")

	file := createFile(t, h, alice, map[string]any{"name": "notes.txt", "content": "secret"})

	// bob cannot see it yet
	rec := doJSON(t, h, "GET", "/api/v1/fs/files/"+file.ID, bob, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unshared get: status %d, want 403", rec.Code)
	}

	// alice shares view-only
	rec = doJSON(t, h, "POST", "/api/v1/fs/files/"+file.ID+"/share", alice, map[string]any{
		"username": "bob", "permissions": []string{"view"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("share: status %d: %s", rec.Code, rec.Body.String())
	}

	// bob can read but not write
	rec = doJSON(t, h, "GET", "/api/v1/fs/files/"+file.ID, bob, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("shared get: status %d, want 200", rec.Code)
	}
	rec = doJSON(t, h, "PUT", "/api/v1/fs/files/"+file.ID, bob, map[string]string{"content": "hacked"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("view-only update: status %d, want 403", rec.Code)
	}

	// nor delete; that stays owner-only
	rec = doJSON(t, h, "DELETE", "/api/v1/fs/files/"+file.ID, bob, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-owner delete: status %d, want 403", rec.Code)
	}

	// the file shows up in bob's shared listing
	rec = doJSON(t, h, "GET", "/api/v1/fs/files/shared-with-me", bob, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("shared-with-me: status %d", rec.Code)
	}
	var shared []vfs.File
	decode(t, rec, &shared)
	if len(shared) != 1 || shared[0].ID != file.ID {
		t.Errorf("shared listing = %+v", shared)
	}

	// revoke and verify
	rec = doJSON(t, h, "DELETE", "/api/v1/fs/files/"+file.ID+"/share/bob", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke: status %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, "GET", "/api/v1/fs/files/"+file.ID, bob, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("get after revoke: status %d, want 403", rec.Code)
	}
}

func TestShareUnknownUser(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")

	file := createFile(t, h, alice, map[string]any{"name": "notes.txt"})

	rec := doJSON(t, h, "POST", "/api/v1/fs/files/"+file.ID+"/share", alice, map[string]any{
		"username": "ghost", "permissions": []string{"view"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPublicVisibility(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")

	file := createFile(t, h, alice, map[string]any{"name": "findme.txt", "content": "open data"})

	// not public yet: anonymous fetch and search find nothing
	rec := doJSON(t, h, "GET", "/api/v1/fs/files/public/"+file.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("private public-get: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, "PUT", "/api/v1/fs/files/"+file.ID+"/public?make_public=true", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("make public: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, "GET", "/api/v1/fs/files/public/"+file.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("public get: status %d, want 200", rec.Code)
	}

	// anonymous search finds it
	rec = doJSON(t, h, "GET", "/api/v1/fs/search?q=findme", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous search: status %d", rec.Code)
	}
	var results []vfs.File
	decode(t, rec, &results)
	if len(results) != 1 {
		t.Fatalf("anonymous search found %d results, want 1", len(results))
	}

	// back to private
	rec = doJSON(t, h, "PUT", "/api/v1/fs/files/"+file.ID+"/public?make_public=false", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("make private: status %d", rec.Code)
	}
	rec = doJSON(t, h, "GET", "/api/v1/fs/search?q=findme", "", nil)
	decode(t, rec, &results)
	if len(results) != 0 {
		t.Error("private file still visible to anonymous search")
	}
}

func TestPublicListLimit(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")

	for i := 0; i < 3; i++ {
		createFile(t, h, alice, map[string]any{
			"name": fmt.Sprintf("pub-%d.txt", i), "public": true,
		})
	}

	rec := doJSON(t, h, "GET", "/api/v1/fs/files/public?limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var files []vfs.File
	decode(t, rec, &files)
	if len(files) != 2 {
		t.Errorf("got %d files, want 2", len(files))
	}
}

func TestPermissionsEndpoint(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")

	file := createFile(t, h, alice, map[string]any{"name": "notes.txt"})

	rec := doJSON(t, h, "GET", "/api/v1/fs/files/"+file.ID+"/permissions", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var perms struct {
		Owner   string `json:"owner"`
		IsOwner bool   `json:"is_owner"`
	}
	decode(t, rec, &perms)
	if perms.Owner != "alice" || !perms.IsOwner {
		t.Errorf("unexpected permissions: %+v", perms)
	}
}

func TestMoveEndpoint(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")

	dir := createFile(t, h, alice, map[string]any{"name": "archive", "directory": true})
	file := createFile(t, h, alice, map[string]any{"name": "old.txt"})

	rec := doJSON(t, h, "PUT", "/api/v1/fs/files/"+file.ID+"/move", alice, map[string]string{
		"new_parent_id": dir.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("move: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, "GET", "/api/v1/fs/files/"+file.ID, alice, nil)
	var moved vfs.File
	decode(t, rec, &moved)
	if moved.Parent == nil || *moved.Parent != dir.ID {
		t.Errorf("parent = %v, want %s", moved.Parent, dir.ID)
	}

	// moving into a plain file fails
	rec = doJSON(t, h, "PUT", "/api/v1/fs/files/"+dir.ID+"/move", alice, map[string]string{
		"new_parent_id": file.ID,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("move into non-directory: status %d, want 400", rec.Code)
	}
}

func TestMeAndUsers(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")

	rec := doJSON(t, h, "GET", "/api/v1/auth/me", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d", rec.Code)
	}
	var me identity.SecureUser
	decode(t, rec, &me)
	if me.Username != "alice" {
		t.Errorf("username = %q, want alice", me.Username)
	}

	// regular users cannot list everyone
	rec = doJSON(t, h, "GET", "/api/v1/auth/users", alice, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("users as non-admin: status %d, want 403", rec.Code)
	}
}

func TestUpdateMeRejectsUnknownRole(t *testing.T) {
	h := newTestHandler(t)
	alice := signup(t, h, "alice")

	rec := doJSON(t, h, "PUT", "/api/v1/auth/me", alice, map[string]string{"role": "moderator"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// the account is unchanged
	rec = doJSON(t, h, "GET", "/api/v1/auth/me", alice, nil)
	var me identity.SecureUser
	decode(t, rec, &me)
	if me.Role != identity.RoleUser {
		t.Errorf("role = %q, want %q", me.Role, identity.RoleUser)
	}
}
