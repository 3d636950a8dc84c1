package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetURL_AbsoluteAndRelative(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := NewLocalStorage(tmpDir, "/files", "http://example.com:8060/")
	if err != nil {
		t.Fatalf("failed create storage: %v", err)
	}
	if got, want := c.GetURL("a.xlsx"), "http://example.com:8060/files/a.xlsx"; got != want {
		t.Fatalf("expected %s; got %s", want, got)
	}

	c2, _ := NewLocalStorage(tmpDir, "files", "")
	if got := c2.GetURL("b.xlsx"); got != "/files/b.xlsx" {
		t.Fatalf("expected /files/b.xlsx; got %s", got)
	}
}

func TestSaveAndServeFile(t *testing.T) {
	c, err := NewLocalStorage(t.TempDir(), "/files", "")
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}

	content := []byte("hello world")
	saved, err := c.Save(context.Background(), "../fee records.xlsx", content)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if DisplayName(saved) != "fee records.xlsx" {
		t.Fatalf("unexpected stored name %q", saved)
	}

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, err := c.Resolve(strings.TrimPrefix(r.URL.Path, "/files/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+DisplayName(filepath.Base(path))+"\"")
		http.ServeFile(w, r, path)
	})
	ts := httptest.NewServer(h)
	defer ts.Close()

	url, _ := c.PublicURL(context.Background(), saved)
	resp, err := http.Get(ts.URL + url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bad status: %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "fee records.xlsx") {
		t.Fatalf("expected original filename in Content-Disposition, got %s", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(content) {
		t.Fatalf("content mismatch: %s", body)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	c, _ := NewLocalStorage(t.TempDir(), "/files", "")

	for _, name := range []string{"", "../etc/passwd", ".hidden", "a/b.xlsx"} {
		if _, err := c.Resolve(name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestCleanupOlderThan(t *testing.T) {
	c, _ := NewLocalStorage(t.TempDir(), "/files", "")

	oldName, _ := c.Save(context.Background(), "old.xlsx", []byte("old"))
	newName, _ := c.Save(context.Background(), "new.xlsx", []byte("new"))

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(c.BaseDir, oldName), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	n, err := c.CleanupOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 file removed, got %d", n)
	}
	if _, err := c.Resolve(newName); err != nil {
		t.Fatalf("recent file should remain: %v", err)
	}
}
