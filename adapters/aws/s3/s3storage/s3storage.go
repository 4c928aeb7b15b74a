package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/Abraxas-365/ollamarelay/storage"
)

// PutObjectAPI is the part of the S3 client the store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps a transcript as a series of objects under a key prefix.
// S3 objects cannot be appended to, so each appended block becomes its
// own write-once object; listing the prefix in key order yields the
// transcript in append order.
type S3Store struct {
	client PutObjectAPI
	bucket string
	now    func() time.Time
	newID  func() string
}

func NewS3Store(client PutObjectAPI, bucket string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// ParseTarget splits "s3://bucket/prefix" into bucket and prefix. ok is
// false when target is not an S3 URL.
func ParseTarget(target string) (bucket, prefix string, ok bool) {
	rest, found := strings.CutPrefix(target, "s3://")
	if !found || rest == "" {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, strings.Trim(prefix, "/"), true
}

// Append stores data as a new object under target, which is either a key
// prefix or an "s3://bucket/prefix" URL for this store's bucket.
func (s *S3Store) Append(ctx context.Context, target string, data io.Reader, options ...storage.PutOption) error {
	prefix := target
	if bucket, p, ok := ParseTarget(target); ok {
		if bucket != s.bucket {
			return storage.NewStorageError("Append", target, fmt.Errorf("bucket %q, store is bound to %q", bucket, s.bucket), storage.ErrCodeInvalidArgument, "bucket mismatch")
		}
		prefix = p
	}

	opts := storage.NewPutOptions(options...)

	body, err := io.ReadAll(data)
	if err != nil {
		return storage.NewStorageError("Append", target, err, storage.ErrCodeInternal, "failed to read data")
	}

	key := path.Join(prefix, fmt.Sprintf("%s-%s.log", s.now().UTC().Format("20060102T150405.000Z"), s.newID()))

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}

	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	if opts.Metadata != nil {
		input.Metadata = opts.Metadata
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return storage.NewStorageError("Append", key, err, classify(err), "failed to put object")
	}

	return nil
}

func classify(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return storage.ErrCodePermissionDenied
		case "NoSuchBucket", "InvalidBucketName":
			return storage.ErrCodeInvalidArgument
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return storage.ErrCodeUnavailable
		}
	}
	return storage.ErrCodeInternal
}

var _ storage.TranscriptStore = (*S3Store)(nil)
