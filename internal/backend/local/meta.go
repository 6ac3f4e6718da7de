package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/island-is/cache/internal/backend"
)

const metaSuffix = ".meta"

// entryMeta 是与归档并列保存的元数据，查找时只读取它而不打开归档。
type entryMeta struct {
	Key         string    `cbor:"1,keyasint"`
	Version     string    `cbor:"2,keyasint"`
	Compression string    `cbor:"3,keyasint"`
	Size        int64     `cbor:"4,keyasint"`
	CreatedAt   time.Time `cbor:"5,keyasint"`
}

var metaEncMode = func() cbor.EncMode {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic("local backend: cbor encoder initialization failed: " + err.Error())
	}
	return mode
}()

func writeMeta(path string, meta entryMeta) error {
	data, err := metaEncMode.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".meta-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

func readMeta(path string) (*entryMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta entryMeta
	if err := cbor.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}

// listEntries 读取版本目录下的全部元数据；损坏的条目被跳过。
func listEntries(dir string) ([]backend.Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]backend.Entry, 0, len(items))
	for _, item := range items {
		if item.IsDir() || !strings.HasSuffix(item.Name(), metaSuffix) {
			continue
		}
		meta, err := readMeta(filepath.Join(dir, item.Name()))
		if err != nil {
			continue
		}
		entries = append(entries, backend.Entry{Key: meta.Key, CreatedAt: meta.CreatedAt})
	}
	return entries, nil
}
