package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/ddiff-io/ddiff/oci"
)

// S3 is a Driver writing the registry layout into a bucket, matching the
// key scheme the registry's s3 storage driver reads.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 driver using the default AWS credential chain.
func NewS3(ctx context.Context, bucket, region, prefix string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3WithClient creates an S3 driver with a preconfigured client.
func NewS3WithClient(client *s3.Client, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) key(p string) string {
	return path.Join(s.prefix, p)
}

// BlobExists checks the blob's canonical key with a HeadObject call.
func (s *S3) BlobExists(ctx context.Context, digest oci.DigestInfo) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(BlobDataPath(digest))),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "NotFound", "NoSuchKey":
				return false, nil
			}
		}
		return false, fmt.Errorf("failed to check blob %s: %w", digest.String(), err)
	}
	return true, nil
}

// WriteBlob spools the stream to a local temporary file while hashing, and
// only uploads the object once the hash matches the digest. The object PUT
// itself is atomic on S3, so unverified bytes never become visible at the
// canonical key.
func (s *S3) WriteBlob(ctx context.Context, digest oci.DigestInfo, r io.Reader) error {
	tmp, err := os.CreateTemp("", "ddiff-blob-*.part")
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	vr := oci.NewVerifyingReader(r)
	if _, err := io.Copy(tmp, vr); err != nil {
		return fmt.Errorf("failed to spool blob %s: %w", digest.String(), err)
	}
	if err := vr.Verify(digest); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", digest.String(), err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind spool file: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(BlobDataPath(digest))),
		Body:          tmp,
		ContentLength: aws.Int64(vr.Size()),
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", digest.String(), err)
	}
	return nil
}

// WriteFile puts a small object under the store prefix.
func (s *S3) WriteFile(ctx context.Context, path string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(path)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return nil
}
