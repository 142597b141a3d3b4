package feed

import (
	"bytes"
	"context"
	"testing"

	"github.com/nupoint/nupoint/internal/store"
)

func newIconFixture(t *testing.T) (*Builder, store.Store) {
	t.Helper()
	files, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store init: %v", err)
	}

	ix := newTestIndex(t)
	addPackage(t, ix, "Foo", "1.0.0", "old")
	addPackage(t, ix, "Foo", "2.0.0", "new")
	return NewBuilder(ix), files
}

func putFile(t *testing.T, files store.Store, rel string) {
	t.Helper()
	if _, err := files.WriteFile(context.Background(), rel, bytes.NewReader([]byte("img")), store.PutOptions{}); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestResolveIconInRequestedVersion(t *testing.T) {
	b, files := newIconFixture(t)
	putFile(t, files, "Foo/1.0.0/icon.png")

	icon, ok := b.ResolveIcon(context.Background(), files, "foo", "1.0.0")
	if !ok {
		t.Fatalf("icon should resolve")
	}
	if icon.RelPath != "Foo/1.0.0/icon.png" {
		t.Fatalf("wrong icon path: %s", icon.RelPath)
	}
	if icon.ContentType != "image/png" {
		t.Fatalf("wrong content type: %s", icon.ContentType)
	}
}

func TestResolveIconExtensionPriority(t *testing.T) {
	b, files := newIconFixture(t)
	putFile(t, files, "Foo/1.0.0/icon.svg")
	putFile(t, files, "Foo/1.0.0/icon.jpg")

	icon, ok := b.ResolveIcon(context.Background(), files, "foo", "1.0.0")
	if !ok {
		t.Fatalf("icon should resolve")
	}
	if icon.RelPath != "Foo/1.0.0/icon.jpg" {
		t.Fatalf("jpg outranks svg in the probe order, got %s", icon.RelPath)
	}
}

func TestResolveIconFallsBackToLatestVersion(t *testing.T) {
	b, files := newIconFixture(t)
	putFile(t, files, "Foo/2.0.0/icon.gif")

	icon, ok := b.ResolveIcon(context.Background(), files, "foo", "1.0.0")
	if !ok {
		t.Fatalf("probe should fall back to the latest version directory")
	}
	if icon.RelPath != "Foo/2.0.0/icon.gif" {
		t.Fatalf("wrong fallback path: %s", icon.RelPath)
	}
}

func TestResolveIconMissAndUnknownPackage(t *testing.T) {
	b, files := newIconFixture(t)

	if _, ok := b.ResolveIcon(context.Background(), files, "foo", "1.0.0"); ok {
		t.Fatalf("no icon anywhere should miss")
	}
	if _, ok := b.ResolveIcon(context.Background(), files, "missing", "1.0.0"); ok {
		t.Fatalf("unknown package should miss")
	}
}
