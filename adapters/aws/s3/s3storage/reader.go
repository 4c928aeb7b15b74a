package s3storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Abraxas-365/ollamarelay/storage"
)

// ReadObjectsAPI is the part of the S3 client the reader needs.
type ReadObjectsAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Reader reassembles a transcript written by S3Store by reading the block
// objects under a prefix in key order.
type Reader struct {
	client ReadObjectsAPI
	bucket string
}

func NewReader(client ReadObjectsAPI, bucket string) *Reader {
	return &Reader{
		client: client,
		bucket: bucket,
	}
}

// Open concatenates the blocks stored directly under target. Keys start
// with a UTC timestamp, so key order is append order.
func (r *Reader) Open(ctx context.Context, target string) (io.ReadCloser, error) {
	prefix := target
	if bucket, p, ok := ParseTarget(target); ok {
		if bucket != r.bucket {
			return nil, storage.NewStorageError("Open", target, nil, storage.ErrCodeInvalidArgument, "bucket mismatch")
		}
		prefix = p
	}
	listPrefix := prefix
	if listPrefix != "" {
		listPrefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(listPrefix),
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storage.NewStorageError("Open", target, err, classify(err), "failed to list objects")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, listPrefix)
			// Only blocks directly under the prefix, not nested transcripts.
			if strings.Contains(name, "/") || !strings.HasSuffix(name, ".log") {
				continue
			}
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, storage.NewStorageError("Open", target, nil, storage.ErrCodeNotFound, "no transcript blocks under prefix")
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, key := range keys {
		if err := r.getObject(ctx, key, &buf); err != nil {
			return nil, err
		}
	}
	return io.NopCloser(&buf), nil
}

func (r *Reader) getObject(ctx context.Context, key string, w io.Writer) error {
	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storage.NewStorageError("Open", key, err, classify(err), "failed to get object")
	}
	defer result.Body.Close()

	if _, err := io.Copy(w, result.Body); err != nil {
		return storage.NewStorageError("Open", key, err, storage.ErrCodeInternal, "failed to read object")
	}
	return nil
}

var _ storage.TranscriptReader = (*Reader)(nil)
