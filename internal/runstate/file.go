package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// File 把同一 run 的状态保存为 <dir>/<runID>.json，读写都持有文件锁。
type File struct {
	path string
	lock *flock.Flock
}

var _ Store = (*File)(nil)

// NewFile 创建文件状态存储，dir 不存在时自动创建。
func NewFile(dir, runID string) (*File, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, ErrRunIDRequired
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(runID) + ".json"
	path := filepath.Join(dir, name)
	return &File{path: path, lock: flock.New(path + ".lock")}, nil
}

func (f *File) Get(ctx context.Context, name string) (string, error) {
	if _, err := f.lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return "", fmt.Errorf("lock state: %w", err)
	}
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return "", err
	}
	return values[name], nil
}

func (f *File) Set(ctx context.Context, name, value string) error {
	if _, err := f.lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("lock state: %w", err)
	}
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[name] = value
	return f.write(values)
}

func (f *File) Close() error {
	return nil
}

func (f *File) read() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", filepath.Base(f.path), err)
	}
	return values, nil
}

func (f *File) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
