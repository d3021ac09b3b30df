package cachestore

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
)

func okResponse(url, body string) *Response {
	return &Response{
		URL:    url,
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   []byte(body),
	}
}

// runStorageContract exercises the behavior every Storage backend shares.
func runStorageContract(t *testing.T, newStorage func(t *testing.T) Storage) {
	t.Helper()

	t.Run("OpenCreatesAndReuses", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		if ok, _ := s.Has(ctx, "app-v1"); ok {
			t.Fatal("Has before Open should be false")
		}
		c, err := s.Open(ctx, "app-v1")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if c.Name() != "app-v1" {
			t.Errorf("Name() = %q, want %q", c.Name(), "app-v1")
		}
		if _, err := s.Open(ctx, "app-v1"); err != nil {
			t.Fatalf("second Open failed: %v", err)
		}
		names, err := s.Keys(ctx)
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if !reflect.DeepEqual(names, []string{"app-v1"}) {
			t.Errorf("Keys() = %v, want [app-v1]", names)
		}
	})

	t.Run("LookupNeverCreates", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		if _, ok, err := s.Lookup(ctx, "app-v1"); err != nil || ok {
			t.Fatalf("Lookup(missing) = (%v, %v), want (false, nil)", ok, err)
		}
		if ok, _ := s.Has(ctx, "app-v1"); ok {
			t.Fatal("Lookup must not create the cache")
		}

		c, _ := s.Open(ctx, "app-v1")
		if err := c.Put(ctx, "./a.js", okResponse("./a.js", "a")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, ok, err := s.Lookup(ctx, "app-v1")
		if err != nil || !ok {
			t.Fatalf("Lookup(existing) = (%v, %v)", ok, err)
		}
		if _, hit, _ := got.Match(ctx, "./a.js"); !hit {
			t.Error("looked-up cache should see stored entries")
		}

		if _, err := s.Delete(ctx, "app-v1"); err != nil {
			t.Fatal(err)
		}
		if _, ok, _ := s.Lookup(ctx, "app-v1"); ok {
			t.Error("Lookup after Delete should miss")
		}
	})

	t.Run("OpenRejectsInvalidName", func(t *testing.T) {
		s := newStorage(t)
		if _, err := s.Open(context.Background(), "  "); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Open(blank) error = %v, want ErrInvalidName", err)
		}
	})

	t.Run("KeysInCreationOrder", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		want := []string{"b-cache", "a-cache", "c-cache"}
		for _, name := range want {
			if _, err := s.Open(ctx, name); err != nil {
				t.Fatalf("Open(%q) failed: %v", name, err)
			}
		}
		got, err := s.Keys(ctx)
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Keys() = %v, want %v", got, want)
		}
	})

	t.Run("PutMatchDelete", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		c, err := s.Open(ctx, "app-v1")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}

		if _, ok, err := c.Match(ctx, "./index.html"); err != nil || ok {
			t.Fatalf("Match on empty cache = (%v, %v), want miss", ok, err)
		}
		if err := c.Put(ctx, "./index.html", okResponse("./index.html", "<html>")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, ok, err := c.Match(ctx, "/index.html")
		if err != nil || !ok {
			t.Fatalf("Match after Put = (%v, %v), want hit", ok, err)
		}
		if string(got.Body) != "<html>" {
			t.Errorf("Body = %q, want %q", got.Body, "<html>")
		}
		if got.Header.Get("Content-Type") != "text/plain" {
			t.Errorf("Content-Type = %q, want text/plain", got.Header.Get("Content-Type"))
		}
		if got.StoredAt.IsZero() {
			t.Error("StoredAt should be set on Put")
		}

		keys, err := c.Keys(ctx)
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if !reflect.DeepEqual(keys, []string{"/index.html"}) {
			t.Errorf("Keys() = %v, want [/index.html]", keys)
		}

		deleted, err := c.Delete(ctx, "index.html")
		if err != nil || !deleted {
			t.Fatalf("Delete = (%v, %v), want (true, nil)", deleted, err)
		}
		deleted, err = c.Delete(ctx, "index.html")
		if err != nil || deleted {
			t.Errorf("second Delete = (%v, %v), want (false, nil)", deleted, err)
		}
	})

	t.Run("PutAllRejectsNilResponse", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		c, _ := s.Open(ctx, "app-v1")

		err := c.PutAll(ctx, []Entry{
			{URL: "./a.js", Response: okResponse("./a.js", "a")},
			{URL: "./b.js", Response: nil},
		})
		if !errors.Is(err, ErrNilResponse) {
			t.Fatalf("PutAll error = %v, want ErrNilResponse", err)
		}
		if _, ok, _ := c.Match(ctx, "./a.js"); ok {
			t.Error("PutAll must not store any entry when one is invalid")
		}
	})

	t.Run("StorageMatchSpansCaches", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		old, _ := s.Open(ctx, "app-v0")
		cur, _ := s.Open(ctx, "app-v1")

		if err := old.Put(ctx, "./legacy.js", okResponse("./legacy.js", "legacy")); err != nil {
			t.Fatal(err)
		}
		if err := old.Put(ctx, "./shared.js", okResponse("./shared.js", "old")); err != nil {
			t.Fatal(err)
		}
		if err := cur.Put(ctx, "./shared.js", okResponse("./shared.js", "new")); err != nil {
			t.Fatal(err)
		}

		got, ok, err := s.Match(ctx, "./legacy.js")
		if err != nil || !ok || string(got.Body) != "legacy" {
			t.Errorf("Match(legacy) = (%v, %v, %v), want hit from older cache", got, ok, err)
		}
		got, ok, err = s.Match(ctx, "./shared.js")
		if err != nil || !ok || string(got.Body) != "old" {
			t.Errorf("Match(shared) should return the first cache in creation order, got %v", got)
		}
		if _, ok, err := s.Match(ctx, "./missing.js"); err != nil || ok {
			t.Errorf("Match(missing) = (%v, %v), want miss", ok, err)
		}
	})

	t.Run("DeleteRemovesEntries", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		c, _ := s.Open(ctx, "app-v0")
		if err := c.Put(ctx, "./a.js", okResponse("./a.js", "a")); err != nil {
			t.Fatal(err)
		}

		deleted, err := s.Delete(ctx, "app-v0")
		if err != nil || !deleted {
			t.Fatalf("Delete = (%v, %v), want (true, nil)", deleted, err)
		}
		if ok, _ := s.Has(ctx, "app-v0"); ok {
			t.Error("Has after Delete should be false")
		}
		if _, ok, _ := s.Match(ctx, "./a.js"); ok {
			t.Error("Match after Delete should miss")
		}
		deleted, err = s.Delete(ctx, "app-v0")
		if err != nil || deleted {
			t.Errorf("second Delete = (%v, %v), want (false, nil)", deleted, err)
		}

		// Reopening starts from an empty cache.
		c, _ = s.Open(ctx, "app-v0")
		if _, ok, _ := c.Match(ctx, "./a.js"); ok {
			t.Error("reopened cache should be empty")
		}
	})

	t.Run("ReturnedResponsesAreCopies", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		c, _ := s.Open(ctx, "app-v1")
		if err := c.Put(ctx, "./a.js", okResponse("./a.js", "abc")); err != nil {
			t.Fatal(err)
		}
		got, _, _ := c.Match(ctx, "./a.js")
		got.Body[0] = 'X'
		got.Header.Set("Content-Type", "changed")

		again, _, _ := c.Match(ctx, "./a.js")
		if string(again.Body) != "abc" {
			t.Errorf("stored body mutated: %q", again.Body)
		}
		if again.Header.Get("Content-Type") != "text/plain" {
			t.Errorf("stored header mutated: %q", again.Header.Get("Content-Type"))
		}
	})
}
