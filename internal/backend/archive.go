package backend

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNoFiles 表示路径模式没有匹配到任何文件，此时不会产生归档。
var ErrNoFiles = errors.New("Path Validation Error: Path(s) specified in the action for caching do(es) not exist, hence no cache is being saved.")

// Archiver 负责把路径集合打包成压缩 tar，以及把归档还原到工作目录。
// 归档内的条目名是相对 Workspace 的 slash 路径，工作目录之外的文件以 "../" 开头。
type Archiver struct {
	Workspace   string
	Compression Compression
	TempDir     string
}

// NewArchiver 构建 Archiver；workspace 为空时使用当前目录。
func NewArchiver(workspace, tempDir string, compression Compression) (*Archiver, error) {
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		workspace = wd
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	return &Archiver{Workspace: abs, Compression: compression, TempDir: tempDir}, nil
}

// Version 返回 paths 在当前压缩方式下的缓存版本。
func (a *Archiver) Version(paths []string) string {
	return Version(paths, a.Compression)
}

// Create 将 paths 打包到临时文件，返回文件路径与大小；调用方负责删除该文件。
func (a *Archiver) Create(ctx context.Context, paths []string) (string, int64, error) {
	includes, exclude, err := resolvePatterns(a.Workspace, paths)
	if err != nil {
		return "", 0, err
	}
	if len(includes) == 0 {
		return "", 0, ErrNoFiles
	}

	tmp, err := os.CreateTemp(a.TempDir, "cache-*"+a.Compression.Extension())
	if err != nil {
		return "", 0, fmt.Errorf("create archive: %w", err)
	}
	tmpName := tmp.Name()

	err = a.write(ctx, tmp, includes, exclude)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return "", 0, err
	}

	info, err := os.Stat(tmpName)
	if err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("stat archive: %w", err)
	}
	return tmpName, info.Size(), nil
}

func (a *Archiver) write(ctx context.Context, w io.Writer, includes []string, exclude func(string) bool) error {
	cw, err := newCompressWriter(a.Compression, w)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(cw)

	seen := make(map[string]struct{})
	for _, root := range includes {
		walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if exclude(p) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if _, ok := seen[p]; ok {
				return nil
			}
			seen[p] = struct{}{}
			return a.addEntry(tw, p, d)
		})
		if walkErr != nil {
			tw.Close()
			cw.Close()
			return fmt.Errorf("archive %s: %w", root, walkErr)
		}
	}

	if err := tw.Close(); err != nil {
		cw.Close()
		return fmt.Errorf("close tar: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("close %s stream: %w", a.Compression, err)
	}
	return nil
}

func (a *Archiver) addEntry(tw *tar.Writer, p string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(p); err != nil {
			return err
		}
	} else if !info.Mode().IsRegular() && !info.IsDir() {
		// sockets, devices and pipes are not cacheable
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	name, err := a.entryName(p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		name += "/"
	}
	hdr.Name = name
	hdr.Uname, hdr.Gname = "", ""

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

func (a *Archiver) entryName(p string) (string, error) {
	rel, err := filepath.Rel(a.Workspace, p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Extract 将压缩 tar 还原到 Workspace。绝对路径条目会被拒绝。
func (a *Archiver) Extract(ctx context.Context, r io.Reader) error {
	dr, err := newDecompressReader(a.Compression, r)
	if err != nil {
		return err
	}
	defer dr.Close()

	tr := tar.NewReader(dr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		target, err := a.targetPath(hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()|0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			continue
		}
	}
}

func (a *Archiver) targetPath(name string) (string, error) {
	if name == "" || path.IsAbs(name) || filepath.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("refusing archive entry with absolute path %q", name)
	}
	return filepath.Join(a.Workspace, filepath.FromSlash(name)), nil
}

func writeFile(target string, r io.Reader, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, hdr.FileInfo().Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chtimes(target, hdr.ModTime, hdr.ModTime)
}
