package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/island-is/cache/internal/backend"
)

const defaultCopyBuffer = 32 * 1024

// Store 以 basePath 为根目录保存缓存归档，一个进程复用一份实例。
type Store struct {
	basePath string
	archiver *backend.Archiver
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

var _ backend.Backend = (*Store)(nil)

// New 构建文件系统后端，basePath 不存在时自动创建。
func New(basePath string, archiver *backend.Archiver) (*Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}
	if archiver == nil {
		return nil, errors.New("archiver required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &Store{
		basePath: abs,
		archiver: archiver,
		now:      time.Now,
		locks:    make(map[string]*entryLock),
	}, nil
}

func (s *Store) Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys []string) (string, error) {
	if err := backend.ValidatePaths("restore", paths); err != nil {
		return "", err
	}
	if err := backend.ValidateKeys("restore", primaryKey, restoreKeys); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	version := s.archiver.Version(paths)
	key, found, err := s.lookup(version, primaryKey, restoreKeys)
	if err != nil || !found {
		return "", err
	}

	f, err := os.Open(s.archivePath(version, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// metadata without archive: treat as a miss
			return "", nil
		}
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	if err := s.archiver.Extract(ctx, f); err != nil {
		return "", fmt.Errorf("extract %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) lookup(version, primaryKey string, restoreKeys []string) (string, bool, error) {
	if meta, err := readMeta(s.metaPath(version, primaryKey)); err == nil && meta.Key == primaryKey {
		return primaryKey, true, nil
	}
	if len(restoreKeys) == 0 {
		return "", false, nil
	}

	entries, err := listEntries(s.versionDir(version))
	if err != nil {
		return "", false, fmt.Errorf("list cache entries: %w", err)
	}
	match, ok := backend.SelectMatch(primaryKey, restoreKeys, entries)
	if !ok {
		return "", false, nil
	}
	return match.Key, true, nil
}

func (s *Store) Save(ctx context.Context, paths []string, key string, opts backend.SaveOptions) error {
	if err := backend.ValidatePaths("save", paths); err != nil {
		return err
	}
	if err := backend.ValidateKey("save", key); err != nil {
		return err
	}

	version := s.archiver.Version(paths)
	if err := os.MkdirAll(s.versionDir(version), 0o755); err != nil {
		return fmt.Errorf("create version dir: %w", err)
	}

	unlock := s.lockEntry(version, key)
	defer unlock()

	fileLock := flock.New(s.lockPath(version, key))
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("lock entry: %w", err)
	}
	if !locked {
		return backend.ReservationConflict("save", key, nil)
	}
	defer fileLock.Unlock()

	if _, err := os.Stat(s.metaPath(version, key)); err == nil {
		return backend.ReservationConflict("save", key, nil)
	}

	archivePath, size, err := s.archiver.Create(ctx, paths)
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)

	if err := s.commit(ctx, version, key, archivePath, opts.UploadChunkSize); err != nil {
		return err
	}

	return writeMeta(s.metaPath(version, key), entryMeta{
		Key:         key,
		Version:     version,
		Compression: s.archiver.Compression.String(),
		Size:        size,
		CreatedAt:   s.now().UTC(),
	})
}

// commit 将临时归档复制到存储目录并原子 rename，chunkSize 作为复制缓冲大小。
func (s *Store) commit(ctx context.Context, version, key, archivePath string, chunkSize int64) error {
	src, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer src.Close()

	finalPath := s.archivePath(version, key)
	tempFile, err := os.CreateTemp(filepath.Dir(finalPath), ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, src, bufferSize(chunkSize))
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return fmt.Errorf("store archive: %w", err)
	}

	if err := os.Rename(tempName, finalPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("store archive: %w", err)
	}
	return nil
}

// Close 无需释放资源。
func (s *Store) Close() error {
	return nil
}

func (s *Store) lockEntry(version, key string) func() {
	lockKey := version + "::" + key
	s.mu.Lock()
	lock := s.locks[lockKey]
	if lock == nil {
		lock = &entryLock{}
		s.locks[lockKey] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, lockKey)
		}
		s.mu.Unlock()
	}
}

func (s *Store) versionDir(version string) string {
	return filepath.Join(s.basePath, version)
}

func (s *Store) entryBase(version, key string) string {
	return filepath.Join(s.versionDir(version), backend.EntryName(key))
}

func (s *Store) archivePath(version, key string) string {
	return s.entryBase(version, key) + s.archiver.Compression.Extension()
}

func (s *Store) metaPath(version, key string) string {
	return s.entryBase(version, key) + metaSuffix
}

func (s *Store) lockPath(version, key string) string {
	return s.entryBase(version, key) + ".lock"
}

func bufferSize(chunkSize int64) int {
	if chunkSize <= 0 {
		return defaultCopyBuffer
	}
	if chunkSize > 64*1024*1024 {
		return 64 * 1024 * 1024
	}
	return int(chunkSize)
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, size int) (int64, error) {
	var copied int64
	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
