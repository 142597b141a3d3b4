package index

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

// writePackageDir lays out {root}/{id}/{version}/ with a nuspec and nupkg.
func writePackageDir(t *testing.T, root, id, version string) {
	t.Helper()
	dir := filepath.Join(root, id, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	manifest := fmt.Sprintf(`<package><metadata><id>%s</id><version>%s</version><description>test package</description></metadata></package>`, id, version)
	if err := os.WriteFile(filepath.Join(dir, id+".nuspec"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write nuspec: %v", err)
	}
	nupkg := fmt.Sprintf("%s.%s.nupkg", id, version)
	if err := os.WriteFile(filepath.Join(dir, nupkg), []byte("zip-bytes"), 0o644); err != nil {
		t.Fatalf("write nupkg: %v", err)
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRebuildIndexesPackageTree(t *testing.T) {
	root := t.TempDir()
	writePackageDir(t, root, "Foo", "1.0.0")
	writePackageDir(t, root, "Foo", "2.0.0")
	writePackageDir(t, root, "Bar.Baz", "0.1.0")

	ix := New()
	indexed, err := ix.Rebuild(root, quietLogger())
	if err != nil {
		t.Fatalf("rebuild error: %v", err)
	}
	if indexed != 3 {
		t.Fatalf("expected 3 indexed versions, got %d", indexed)
	}

	metas := ix.PackageMetadata("foo")
	if len(metas) != 2 || metas[0].Version != "1.0.0" || metas[1].Version != "2.0.0" {
		t.Fatalf("foo versions mismatch: %+v", metas)
	}

	entry, ok := ix.Entry("bar.baz", "0.1.0")
	if !ok {
		t.Fatalf("bar.baz should be indexed")
	}
	if entry.Storage.Dir != "Bar.Baz/0.1.0" {
		t.Fatalf("storage dir should keep on-disk case, got %s", entry.Storage.Dir)
	}
	if entry.Storage.FileName != "Bar.Baz.0.1.0.nupkg" {
		t.Fatalf("nupkg name mismatch: %s", entry.Storage.FileName)
	}
	if !entry.Metadata.Listed {
		t.Fatalf("scanned entries default to listed")
	}
}

func TestRebuildSkipsMalformedEntries(t *testing.T) {
	root := t.TempDir()
	writePackageDir(t, root, "Good", "1.0.0")

	// nuspec 损坏的版本目录应被跳过而不中断扫描。
	badDir := filepath.Join(root, "Bad", "1.0.0")
	if err := os.MkdirAll(badDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "Bad.nuspec"), []byte("<package>"), 0o644); err != nil {
		t.Fatalf("write nuspec: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "Bad.1.0.0.nupkg"), []byte("zip"), 0o644); err != nil {
		t.Fatalf("write nupkg: %v", err)
	}

	// 缺少 nupkg 的目录同样跳过。
	emptyDir := filepath.Join(root, "Empty", "1.0.0")
	if err := os.MkdirAll(emptyDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	ix := New()
	indexed, err := ix.Rebuild(root, quietLogger())
	if err != nil {
		t.Fatalf("rebuild error: %v", err)
	}
	if indexed != 1 {
		t.Fatalf("only the valid package should be indexed, got %d", indexed)
	}
	if _, ok := ix.Entry("bad", "1.0.0"); ok {
		t.Fatalf("malformed package must not be indexed")
	}
}

func TestRebuildMissingRootYieldsEmptyIndex(t *testing.T) {
	ix := New()
	indexed, err := ix.Rebuild(filepath.Join(t.TempDir(), "missing"), quietLogger())
	if err != nil {
		t.Fatalf("missing root should not error: %v", err)
	}
	if indexed != 0 {
		t.Fatalf("expected empty index, got %d", indexed)
	}
}

func TestRebuildReplacesPreviousContent(t *testing.T) {
	root := t.TempDir()
	writePackageDir(t, root, "Foo", "1.0.0")

	ix := New()
	if _, err := ix.Rebuild(root, quietLogger()); err != nil {
		t.Fatalf("rebuild error: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(root, "Foo")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writePackageDir(t, root, "Bar", "1.0.0")

	if _, err := ix.Rebuild(root, quietLogger()); err != nil {
		t.Fatalf("second rebuild error: %v", err)
	}
	if _, ok := ix.Entry("foo", "1.0.0"); ok {
		t.Fatalf("stale entries must be dropped on rebuild")
	}
	if _, ok := ix.Entry("bar", "1.0.0"); !ok {
		t.Fatalf("new entries must be picked up")
	}
}
