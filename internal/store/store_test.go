package store

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreJSONRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	type note struct {
		Text string `json:"text"`
	}
	key := UserKey("u1", "notes")
	if err := s.SetJSON(ctx, key, note{Text: "accruals"}); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	var got note
	if err := s.GetJSON(ctx, key, &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got.Text != "accruals" {
		t.Fatalf("Text = %q, want accruals", got.Text)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.GetJSON(ctx, key, &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetJSON() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() missing key error = %v", err)
	}
}

func TestStoreDeletePrefixScopesToUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{
		UserKey("u1", "progress"),
		UserKey("u1", "toolkit", "notes"),
		UserKey("u10", "progress"),
		UserKey("u2", "progress"),
	} {
		if err := s.Set(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}

	n, err := s.DeletePrefix(ctx, UserPrefix("u1"))
	if err != nil {
		t.Fatalf("DeletePrefix() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("DeletePrefix() removed %d, want 2", n)
	}
	keys, err := s.Keys(ctx, "user:")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "user:u10:progress" || keys[1] != "user:u2:progress" {
		t.Fatalf("Keys() = %v, want u10 and u2 progress", keys)
	}

	if _, err := s.DeletePrefix(ctx, ""); err == nil {
		t.Fatalf("DeletePrefix(\"\") error = nil, want refusal")
	}
}

func TestUserPrefixSeparatesSeparatorIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{
		UserKey("a", "app"),
		UserKey("a:b", "app"),
		UserKey("a:toolkit", "notes"),
		UserKey("a%3Ab", "app"),
	} {
		if err := s.Set(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}
	if UserKey("a:toolkit", "notes") == UserKey("a", "toolkit", "notes") {
		t.Fatalf("user a:toolkit shares a key with user a")
	}

	n, err := s.DeletePrefix(ctx, UserPrefix("a"))
	if err != nil {
		t.Fatalf("DeletePrefix() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("DeletePrefix(a) removed %d, want 1", n)
	}
	for _, id := range []string{"a:b", "a:toolkit", "a%3Ab"} {
		keys, err := s.Keys(ctx, UserPrefix(id))
		if err != nil {
			t.Fatalf("Keys() error = %v", err)
		}
		if len(keys) != 1 {
			t.Fatalf("keys of %q = %v, want 1 surviving key", id, keys)
		}
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatalf("Open() error = nil, want missing dir error")
	}
}
