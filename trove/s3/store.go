// Package s3 provides an S3-compatible distributed filesystem for trove.
//
// The adapter works against AWS S3, MinIO, LocalStack, Cloudflare R2, and
// other S3-compatible object stores. Directories are simulated over the key
// space: a key is a directory when objects exist under "<key>/".
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/justapithecus/trove/trove"
)

// API defines the subset of the S3 client interface used by the store.
// This enables testing with mock implementations.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds configuration for the S3 filesystem.
type Config struct {
	// Bucket is the S3 bucket name. Required.
	Bucket string

	// Prefix is an optional key prefix for all operations.
	// If set, all paths are prefixed with this value (with a trailing slash
	// added if missing).
	Prefix string
}

// FS implements trove.FileSystem over an S3-compatible backend.
type FS struct {
	client     API
	bucket     string
	prefix     string
	createTemp func() (*os.File, error) // temp file factory for write spooling
}

// New creates an S3 filesystem with the given client and configuration.
//
// The client must be pre-configured with credentials, region, and endpoint.
// Use NewClient or github.com/aws/aws-sdk-go-v2/config to build one.
func New(client API, cfg Config) (*FS, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &FS{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     prefix,
		createTemp: func() (*os.File, error) { return os.CreateTemp("", "trove-s3-*") },
	}, nil
}

// Exists checks whether a key exists as an object or as a directory prefix.
func (f *FS) Exists(ctx context.Context, path string) (bool, error) {
	key := f.fullKey(path)

	_, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if !isNotFound(err) {
		return false, mapError("head object", err)
	}

	return f.hasChildren(ctx, key)
}

// IsDir checks whether any objects live under the key.
func (f *FS) IsDir(ctx context.Context, path string) (bool, error) {
	return f.hasChildren(ctx, f.fullKey(path))
}

// OpenRead opens the object for sequential reading.
func (f *FS) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.fullKey(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, trove.ErrNotFound
		}
		return nil, mapError("get object", err)
	}
	return out.Body, nil
}

// OpenWrite opens the key for writing. Data is spooled to a temp file and
// uploaded in one PutObject on Close, so memory usage stays O(1) regardless
// of payload size. Intermediate directories need no creation in a key
// space, so mkdirs is accepted and ignored.
func (f *FS) OpenWrite(_ context.Context, path string, _ bool) (io.WriteCloser, error) {
	tmp, err := f.createTemp()
	if err != nil {
		return nil, fmt.Errorf("s3: creating temp file: %w", err)
	}
	return &spoolWriter{
		fs:  f,
		key: f.fullKey(path),
		tmp: tmp,
	}, nil
}

// Children lists the immediate children of a directory key, paginated and
// sorted. Child directories carry a trailing "/".
func (f *FS) Children(ctx context.Context, path string) ([]string, error) {
	prefix := f.fullKey(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var names []string
	var continuationToken *string

	for {
		out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(f.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, mapError("list objects", err)
		}

		for _, obj := range out.Contents {
			if obj.Key == nil || *obj.Key == prefix {
				continue
			}
			names = append(names, strings.TrimPrefix(*obj.Key, prefix))
		}
		for _, cp := range out.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			names = append(names, strings.TrimPrefix(*cp.Prefix, prefix))
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	if len(names) == 0 {
		return nil, trove.ErrNotFound
	}

	sort.Strings(names)
	return names, nil
}

func (f *FS) fullKey(path string) string {
	return f.prefix + strings.TrimPrefix(path, "/")
}

func (f *FS) hasChildren(ctx context.Context, key string) (bool, error) {
	prefix := key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(f.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, mapError("list objects", err)
	}
	return len(out.Contents) > 0, nil
}

// -----------------------------------------------------------------------------
// Spooled writer
// -----------------------------------------------------------------------------

// spoolWriter buffers writes in a temp file and uploads on Close.
type spoolWriter struct {
	fs     *FS
	key    string
	tmp    *os.File
	closed bool
}

func (w *spoolWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *spoolWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer func() {
		_ = w.tmp.Close()
		_ = os.Remove(w.tmp.Name())
	}()

	info, err := w.tmp.Stat()
	if err != nil {
		return fmt.Errorf("s3: stat temp file: %w", err)
	}
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("s3: seeking temp file: %w", err)
	}

	// Uploads use a background-independent context on purpose: the write
	// pass owns the data and the caller already committed to it.
	_, err = w.fs.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:        aws.String(w.fs.bucket),
		Key:           aws.String(w.key),
		Body:          w.tmp,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return mapError("put object", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Error mapping
// -----------------------------------------------------------------------------

// mapError distinguishes connectivity failures (ErrUnreachable) from
// service-level errors. Not-found conditions are handled by callers via
// isNotFound before reaching here.
func mapError(op string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("s3: %s: %w: %v", op, trove.ErrUnreachable, err)
	}
	return fmt.Errorf("s3: %s: %w", op, err)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
