package backend

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression 标识归档使用的压缩算法，取值会参与缓存版本计算。
type Compression uint8

const (
	// CompressionZstd 是默认算法，压缩率与速度较均衡。
	CompressionZstd Compression = iota
	// CompressionLZ4 解压更快，适合体积大、重复少的产物。
	CompressionLZ4
)

// String returns the human-readable name of a compression method.
func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// Extension 返回归档文件后缀。
func (c Compression) Extension() string {
	switch c {
	case CompressionLZ4:
		return ".tar.lz4"
	default:
		return ".tar.zst"
	}
}

// ParseCompression parses a compression method from its string representation.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "zstd", "":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression method: %q", name)
	}
}

// newCompressWriter 包装 w，返回的 WriteCloser 关闭时刷新压缩尾部但不关闭 w。
func newCompressWriter(c Compression, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %s", c)
	}
}

// newDecompressReader 包装 r，调用方负责 Close 释放解码器资源。
func newDecompressReader(c Compression, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %s", c)
	}
}
