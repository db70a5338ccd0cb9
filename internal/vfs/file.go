// Package vfs implements the virtual filesystem: a per-user tree of files
// and directories stored as flat documents, with denormalized view/edit
// ACLs on every node.
//
// Each node is a JSON document in the "files" collection:
//
//	{
//	  "root": username            owner of the tree this node lives in
//	  "directory": bool
//	  "id": unique id
//	  "parent": parent id         must reference a directory; null = top level
//	  "name": name
//	  "content": string           null for directories
//	  "children": [ids]           not kept authoritative, see Move
//	  "can_view": [usernames]
//	  "can_edit": [usernames]
//	  "public": bool
//	  "created_at", "updated_at": timestamps
//	}
package vfs

import "time"

// File is a node in the virtual filesystem, file or directory.
type File struct {
	ID        string    `json:"id"`
	Root      string    `json:"root"`
	Directory bool      `json:"directory"`
	Parent    *string   `json:"parent"`
	Name      string    `json:"name"`
	Content   *string   `json:"content"`
	Children  []string  `json:"children"`
	CanView   []string  `json:"can_view"`
	CanEdit   []string  `json:"can_edit"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tree is the hierarchical rendering of one user's namespace.
type Tree struct {
	Username string      `json:"username"`
	Tree     []*TreeNode `json:"tree"`
}

// TreeNode is one rendered node of a Tree.
type TreeNode struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Directory bool        `json:"directory"`
	Public    bool        `json:"public"`
	Children  []*TreeNode `json:"children"`
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}
