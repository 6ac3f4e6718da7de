package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionZstd, CompressionLZ4} {
		t.Run(compression.String(), func(t *testing.T) {
			src := t.TempDir()
			writeTree(t, src, map[string]string{
				"node_modules/a/index.js":   "module.exports = 1",
				"node_modules/.bin/tool":    "#!/bin/sh",
				"dist/app.js":               "console.log('app')",
				"dist/nested/deep/data.txt": "deep",
				"README.md":                 "not cached",
			})
			if err := os.Symlink("a/index.js", filepath.Join(src, "node_modules", "link.js")); err != nil {
				t.Fatalf("symlink: %v", err)
			}

			archiver, err := NewArchiver(src, t.TempDir(), compression)
			if err != nil {
				t.Fatalf("NewArchiver: %v", err)
			}
			archivePath, size, err := archiver.Create(context.Background(), []string{"node_modules", "dist/*", "!node_modules/.bin"})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if size <= 0 {
				t.Fatalf("archive should not be empty")
			}

			dst := t.TempDir()
			restorer, _ := NewArchiver(dst, "", compression)
			f, err := os.Open(archivePath)
			if err != nil {
				t.Fatalf("open archive: %v", err)
			}
			defer f.Close()
			if err := restorer.Extract(context.Background(), f); err != nil {
				t.Fatalf("Extract: %v", err)
			}

			for name, want := range map[string]string{
				"node_modules/a/index.js":   "module.exports = 1",
				"dist/app.js":               "console.log('app')",
				"dist/nested/deep/data.txt": "deep",
			} {
				got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
				if err != nil || string(got) != want {
					t.Fatalf("%s = %q, %v; want %q", name, got, err, want)
				}
			}
			for _, missing := range []string{"README.md", "node_modules/.bin/tool"} {
				if _, err := os.Stat(filepath.Join(dst, filepath.FromSlash(missing))); !os.IsNotExist(err) {
					t.Fatalf("%s should not be restored (err=%v)", missing, err)
				}
			}
			if link, err := os.Readlink(filepath.Join(dst, "node_modules", "link.js")); err != nil || link != "a/index.js" {
				t.Fatalf("symlink not restored: %q, %v", link, err)
			}
		})
	}
}

func TestArchiveRecursivePatterns(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a/b/node_modules/f.txt":          "nested",
		"a/b/node_modules/.cache/tmp.bin": "scratch",
		"pkg/node_modules/g.txt":          "shallow",
		"src/main.go":                     "package main",
	})

	archiver, err := NewArchiver(src, t.TempDir(), CompressionZstd)
	if err != nil {
		t.Fatalf("NewArchiver: %v", err)
	}
	archivePath, _, err := archiver.Create(context.Background(), []string{"**/node_modules", "!**/node_modules/.cache"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	dst := t.TempDir()
	restorer, _ := NewArchiver(dst, "", CompressionZstd)
	f, err := os.Open(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	if err := restorer.Extract(context.Background(), f); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	for name, want := range map[string]string{
		"a/b/node_modules/f.txt": "nested",
		"pkg/node_modules/g.txt": "shallow",
	} {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		if err != nil || string(got) != want {
			t.Fatalf("%s = %q, %v; want %q", name, got, err, want)
		}
	}
	for _, missing := range []string{"src/main.go", "a/b/node_modules/.cache/tmp.bin"} {
		if _, err := os.Stat(filepath.Join(dst, filepath.FromSlash(missing))); !os.IsNotExist(err) {
			t.Fatalf("%s should not be archived (err=%v)", missing, err)
		}
	}
}

func TestArchiveCreateNoFiles(t *testing.T) {
	archiver, err := NewArchiver(t.TempDir(), t.TempDir(), CompressionZstd)
	if err != nil {
		t.Fatalf("NewArchiver: %v", err)
	}
	_, _, err = archiver.Create(context.Background(), []string{"does-not-exist/**"})
	if !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
	if IsValidation(err) {
		t.Fatalf("missing files must not be a validation error")
	}
}

func TestTargetPathRejectsAbsolute(t *testing.T) {
	archiver := &Archiver{Workspace: t.TempDir()}
	if _, err := archiver.targetPath("/etc/passwd"); err == nil {
		t.Fatalf("absolute entry must be rejected")
	}
	if _, err := archiver.targetPath("../outside/file"); err != nil {
		t.Fatalf("relative entries outside the workspace are allowed: %v", err)
	}
}
