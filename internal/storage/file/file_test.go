package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ieazie/doc-extract/internal/storage"
)

var _ storage.KV = (*Store)(nil)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, AppDir)
}

func Test_DefaultDir_UsesXDG(t *testing.T) {
	base := withTmpConfig(t)
	if got := DefaultDir(); got != base {
		t.Fatalf("DefaultDir=%q, want %q", got, base)
	}
	if got := New("").Dir(); got != base {
		t.Fatalf("New(\"\").Dir()=%q, want %q", got, base)
	}
}

func Test_SetGetRemove(t *testing.T) {
	base := withTmpConfig(t)
	s := New("")
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, storage.KeyTokens); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, storage.KeyTokens, `{"access_token":"tok"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(ctx, storage.KeyTokens)
	if err != nil || !ok || v != `{"access_token":"tok"}` {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}

	st, err := os.Stat(filepath.Join(base, storage.KeyTokens+".json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("perm=%v, want 0600", st.Mode().Perm())
	}

	if err := s.Set(ctx, storage.KeyTokens, "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _, _ := s.Get(ctx, storage.KeyTokens); v != "v2" {
		t.Fatalf("overwrite not visible: %q", v)
	}

	if err := s.Remove(ctx, storage.KeyTokens); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, storage.KeyTokens); err != nil {
		t.Fatalf("Remove twice must be nil: %v", err)
	}
	if _, ok, _ := s.Get(ctx, storage.KeyTokens); ok {
		t.Fatalf("key still present after Remove")
	}
}

func Test_BadKeyAndCanceledCtx(t *testing.T) {
	t.Parallel()
	s := New(t.TempDir())

	if err := s.Set(context.Background(), "../escape", "x"); err == nil {
		t.Fatalf("want error on path traversal key")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.Get(ctx, storage.KeyUser); err == nil {
		t.Fatalf("want ctx error")
	}
}
