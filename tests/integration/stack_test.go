package integration

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/nupoint/nupoint/internal/auth"
	"github.com/nupoint/nupoint/internal/baseurl"
	"github.com/nupoint/nupoint/internal/index"
	"github.com/nupoint/nupoint/internal/publish"
	"github.com/nupoint/nupoint/internal/server"
	"github.com/nupoint/nupoint/internal/store"
	"github.com/nupoint/nupoint/internal/streamgate"
)

// stack wires the whole serving pipeline against a temp packages root, the
// same way main.go does minus the listener.
type stack struct {
	app   *fiber.App
	idx   *index.Index
	files store.Store
	gate  *streamgate.Gate
}

func newStack(t *testing.T, apiKey string) *stack {
	t.Helper()

	files, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store init error: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	idx := index.New()
	if _, err := idx.Rebuild(files.Root(), logger); err != nil {
		t.Fatalf("rebuild error: %v", err)
	}

	gate := streamgate.New()

	app, err := server.NewApp(server.AppOptions{
		Logger:    logger,
		Index:     idx,
		Files:     files,
		Gate:      gate,
		Resolver:  baseurl.NewResolver("", nil),
		Guard:     auth.NewGuard(apiKey, false),
		Publisher: publish.NewPublisher(files, idx, logger),
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}

	return &stack{app: app, idx: idx, files: files, gate: gate}
}

type nupkgFile struct {
	name string
	body []byte
}

// makeNupkg assembles a minimal package archive in memory.
func makeNupkg(t *testing.T, id, version, description string, extras ...nupkgFile) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	manifest := fmt.Sprintf(`<?xml version="1.0"?>
<package>
  <metadata>
    <id>%s</id>
    <version>%s</version>
    <authors>Integration Suite</authors>
    <description>%s</description>
    <tags>integration test</tags>
  </metadata>
</package>`, id, version, description)

	f, err := w.Create(id + ".nuspec")
	if err != nil {
		t.Fatalf("zip create error: %v", err)
	}
	if _, err := f.Write([]byte(manifest)); err != nil {
		t.Fatalf("zip write error: %v", err)
	}

	for _, extra := range extras {
		f, err := w.Create(extra.name)
		if err != nil {
			t.Fatalf("zip create error: %v", err)
		}
		if _, err := f.Write(extra.body); err != nil {
			t.Fatalf("zip write error: %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("zip close error: %v", err)
	}
	return buf.Bytes()
}
