package sqlgraph

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/getkayan/shogun/graph"
	"github.com/getkayan/shogun/keys"
)

func openTest(t *testing.T) *Directory {
	t.Helper()
	dir, err := Open("sqlite", filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return dir
}

func TestDirectoryInsertLookup(t *testing.T) {
	ctx := context.Background()
	dir := openTest(t)

	rec := &graph.Record{Pub: "x.y", Alias: "alice", Epub: "ex.ey", CreatedAt: time.Now().UTC()}
	if err := dir.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := dir.Lookup(ctx, "x.y")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.Alias != "alice" || got.Epub != "ex.ey" {
		t.Errorf("unexpected record %+v", got)
	}

	got, err = dir.LookupAlias(ctx, "alice")
	if err != nil || got.Pub != "x.y" {
		t.Errorf("LookupAlias = %+v, %v", got, err)
	}

	if _, err := dir.Lookup(ctx, "missing"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectoryDuplicates(t *testing.T) {
	ctx := context.Background()
	dir := openTest(t)

	if err := dir.Insert(ctx, &graph.Record{Pub: "p1", Alias: "bob"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := dir.Insert(ctx, &graph.Record{Pub: "p1", Alias: "other"}); !errors.Is(err, graph.ErrUserExists) {
		t.Errorf("duplicate pub: expected ErrUserExists, got %v", err)
	}
	if err := dir.Insert(ctx, &graph.Record{Pub: "p2", Alias: "bob"}); !errors.Is(err, graph.ErrUserExists) {
		t.Errorf("duplicate alias: expected ErrUserExists, got %v", err)
	}
}

func TestGraphOverSQL(t *testing.T) {
	ctx := context.Background()
	db := graph.New(openTest(t))

	b, err := keys.Derive(ctx, keys.Password("persistent-user-password"), nil, keys.Options{})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	if _, err := db.User().Create(ctx, "carol", b.Pair()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	pub, err := db.User().Auth(ctx, b.Pair())
	if err != nil || pub != b.Pub {
		t.Fatalf("Auth = %q, %v", pub, err)
	}
}

func TestUnknownProvider(t *testing.T) {
	if _, err := Open("oracle", "dsn"); err == nil {
		t.Error("expected unknown provider error")
	}
}
