package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type testDoc struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Count  int      `json:"count"`
	Active bool     `json:"active"`
	Tags   []string `json:"tags"`
}

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	doc := testDoc{ID: "a", Name: "alpha", Count: 3, Tags: []string{"x"}}
	if err := store.Set(ctx, "docs", "a", doc); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw, err := store.Get(ctx, "docs", "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var got testDoc
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Name != "alpha" || got.Count != 3 {
		t.Errorf("got %+v, want name=alpha count=3", got)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "docs", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	docs := []testDoc{
		{ID: "a", Name: "alpha", Active: true},
		{ID: "b", Name: "beta", Active: false},
		{ID: "c", Name: "gamma", Active: true},
	}
	for _, d := range docs {
		if err := store.Set(ctx, "docs", d.ID, d); err != nil {
			t.Fatalf("Set %s failed: %v", d.ID, err)
		}
	}

	tests := []struct {
		name  string
		field string
		value any
		want  int
	}{
		{"bool match", "active", true, 2},
		{"string match", "name", "beta", 1},
		{"no match", "name", "delta", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Query(ctx, "docs", tt.field, tt.value)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("got %d results, want %d", len(results), tt.want)
			}
		})
	}
}

func TestMemoryStoreQueryContains(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "docs", "a", testDoc{ID: "a", Tags: []string{"red", "blue"}})
	store.Set(ctx, "docs", "b", testDoc{ID: "b", Tags: []string{"blue"}})
	store.Set(ctx, "docs", "c", testDoc{ID: "c", Tags: []string{"green"}})

	results, err := store.QueryContains(ctx, "docs", "tags", "blue")
	if err != nil {
		t.Fatalf("QueryContains failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "docs", "a", testDoc{ID: "a", Name: "alpha", Count: 1})
	err := store.Update(ctx, "docs", "a", map[string]any{"count": 5})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	raw, _ := store.Get(ctx, "docs", "a")
	var got testDoc
	json.Unmarshal(raw, &got)
	if got.Count != 5 {
		t.Errorf("count = %d, want 5", got.Count)
	}
	if got.Name != "alpha" {
		t.Errorf("update clobbered untouched field: name = %q", got.Name)
	}
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	store := NewMemoryStore()

	err := store.Update(context.Background(), "docs", "nope", map[string]any{"count": 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "docs", "a", testDoc{ID: "a"})
	if err := store.Delete(ctx, "docs", "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "docs", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("document still present after delete")
	}

	// deleting again is a no-op
	if err := store.Delete(ctx, "docs", "a"); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}
