package server

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/pactline/internal/catalog"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const overlay = `definitions:
  - key: securityLevel
    label: Security level
    dimension: Communication
    allowed_modes: [Locked]
    default_mode: Locked
    kind: text
`

func writeCatalog(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return catalog.HashBytes([]byte(content))
}

func TestCatalogWatcherCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	hash := writeCatalog(t, path, overlay)

	w, err := NewCatalogWatcher(path, hash, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()

	if _, changed, err := w.Check(); err != nil || changed {
		t.Fatalf("expected no change, got %v %v", changed, err)
	}

	next := writeCatalog(t, path, overlay+"\n# edited\n")
	got, changed, err := w.Check()
	if err != nil || !changed || got != next {
		t.Fatalf("expected change to %s, got %s %v %v", next, got, changed, err)
	}
	if _, changed, _ := w.Check(); changed {
		t.Error("expected the new hash to be remembered")
	}

	writeCatalog(t, path, "definitions: [")
	if _, _, err := w.Check(); err == nil {
		t.Error("expected invalid YAML to fail")
	}
}

func TestCatalogWatcherLogsRestartRequired(t *testing.T) {
	old := debounceDelay
	debounceDelay = 10 * time.Millisecond
	defer func() { debounceDelay = old }()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	hash := writeCatalog(t, path, overlay)
	var logs syncBuffer
	w, err := NewCatalogWatcher(path, hash, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	next := writeCatalog(t, path, overlay+"\n# edited\n")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		out := logs.String()
		if strings.Contains(out, "restart required") && strings.Contains(out, next) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected a restart warning, got %q", logs.String())
}
