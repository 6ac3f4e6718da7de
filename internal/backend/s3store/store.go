package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/island-is/cache/internal/backend"
)

const (
	// DefaultChunkSize 是未指定 upload-chunk-size 时的单次上传/分片大小。
	DefaultChunkSize int64 = 32 * 1024 * 1024
	// minPartSize 是 S3 对非最后一个分片的最小尺寸要求。
	minPartSize int64 = 5 * 1024 * 1024

	abortTimeout = time.Minute
)

// Store 把缓存归档保存为 S3 对象。
type Store struct {
	client   Client
	bucket   string
	prefix   string
	archiver *backend.Archiver
	minPart  int64

	wg        sync.WaitGroup
	handlerMu sync.Mutex
	onAsync   func(error)
}

var (
	_ backend.Backend       = (*Store)(nil)
	_ backend.AsyncReporter = (*Store)(nil)
)

// New 创建 S3 后端，prefix 两端的 "/" 会被去除。
func New(client Client, bucket, prefix string, archiver *backend.Archiver) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3 client required")
	}
	if bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	if archiver == nil {
		return nil, errors.New("archiver required")
	}
	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		archiver: archiver,
		minPart:  minPartSize,
	}, nil
}

// SetAsyncErrorHandler 安装后台失败（分片上传清理）的接收函数。
func (s *Store) SetAsyncErrorHandler(handler func(error)) {
	s.handlerMu.Lock()
	s.onAsync = handler
	s.handlerMu.Unlock()
}

func (s *Store) Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys []string) (string, error) {
	if err := backend.ValidatePaths("restore", paths); err != nil {
		return "", err
	}
	if err := backend.ValidateKeys("restore", primaryKey, restoreKeys); err != nil {
		return "", err
	}

	version := s.archiver.Version(paths)
	key, found, err := s.lookup(ctx, version, primaryKey, restoreKeys)
	if err != nil || !found {
		return "", err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(version, key)),
	})
	if err != nil {
		if isNotFound(err) {
			// 列表与读取之间对象被删除，按未命中处理
			return "", nil
		}
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := s.archiver.Extract(ctx, out.Body); err != nil {
		return "", fmt.Errorf("extract %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) lookup(ctx context.Context, version, primaryKey string, restoreKeys []string) (string, bool, error) {
	exists, err := s.exists(ctx, s.objectKey(version, primaryKey))
	if err != nil {
		return "", false, err
	}
	if exists {
		return primaryKey, true, nil
	}

	for _, prefix := range restoreKeys {
		entries, err := s.list(ctx, version, prefix)
		if err != nil {
			return "", false, err
		}
		if match, ok := backend.SelectMatch(primaryKey, []string{prefix}, entries); ok {
			return match.Key, true, nil
		}
	}
	return "", false, nil
}

func (s *Store) list(ctx context.Context, version, keyPrefix string) ([]backend.Entry, error) {
	base := s.versionPrefix(version)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(base + keyPrefix),
	})

	var entries []backend.Entry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", keyPrefix, err)
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if !strings.HasPrefix(name, base) {
				continue
			}
			entries = append(entries, backend.Entry{
				Key:       strings.TrimPrefix(name, base),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return entries, nil
}

func (s *Store) exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", objectKey, err)
}

func (s *Store) Save(ctx context.Context, paths []string, key string, opts backend.SaveOptions) error {
	if err := backend.ValidatePaths("save", paths); err != nil {
		return err
	}
	if err := backend.ValidateKey("save", key); err != nil {
		return err
	}

	objectKey := s.objectKey(s.archiver.Version(paths), key)
	exists, err := s.exists(ctx, objectKey)
	if err != nil {
		return err
	}
	if exists {
		return backend.ReservationConflict("save", key, nil)
	}

	archivePath, size, err := s.archiver.Create(ctx, paths)
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	chunk := opts.UploadChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	if size <= chunk {
		err = s.put(ctx, objectKey, f, size)
	} else {
		err = s.multipart(ctx, objectKey, f, size, max(chunk, s.minPart))
	}
	if err != nil {
		if isConditionFailed(err) {
			return backend.ReservationConflict("save", key, nil)
		}
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, objectKey string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          body,
		ContentLength: aws.Int64(size),
		IfNoneMatch:   aws.String("*"),
	})
	return err
}

func (s *Store) multipart(ctx context.Context, objectKey string, f io.ReaderAt, size, partSize int64) error {
	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return err
	}
	uploadID := aws.ToString(created.UploadId)

	var parts []types.CompletedPart
	for offset, number := int64(0), int32(1); offset < size; offset, number = offset+partSize, number+1 {
		n := min(partSize, size-offset)
		out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(objectKey),
			UploadId:      aws.String(uploadID),
			PartNumber:    aws.Int32(number),
			Body:          io.NewSectionReader(f, offset, n),
			ContentLength: aws.Int64(n),
		})
		if err != nil {
			s.abort(ctx, objectKey, uploadID)
			return fmt.Errorf("upload part %d: %w", number, err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(number)})
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(objectKey),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
		IfNoneMatch:     aws.String("*"),
	})
	if err != nil {
		s.abort(ctx, objectKey, uploadID)
		return err
	}
	return nil
}

// abort 在后台清理未完成的分片上传，失败交给异步错误处理函数。
func (s *Store) abort(ctx context.Context, objectKey, uploadID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
		defer cancel()

		_, err := s.client.AbortMultipartUpload(abortCtx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(objectKey),
			UploadId: aws.String(uploadID),
		})
		if err != nil {
			s.report(fmt.Errorf("abort multipart upload %s: %w", objectKey, err))
		}
	}()
}

func (s *Store) report(err error) {
	s.handlerMu.Lock()
	handler := s.onAsync
	s.handlerMu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// Close 等待后台清理结束。
func (s *Store) Close() error {
	s.wg.Wait()
	return nil
}

func (s *Store) versionPrefix(version string) string {
	if s.prefix == "" {
		return version + "/"
	}
	return path.Join(s.prefix, version) + "/"
}

func (s *Store) objectKey(version, key string) string {
	return s.versionPrefix(version) + key
}

type statusCoder interface {
	HTTPStatusCode() int
}

func httpStatus(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	return httpStatus(err) == http.StatusNotFound
}

// isConditionFailed 识别 If-None-Match 失败（412）以及并发条件写入冲突（409）。
func isConditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	status := httpStatus(err)
	return status == http.StatusPreconditionFailed || status == http.StatusConflict
}
