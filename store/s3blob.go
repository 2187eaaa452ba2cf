package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/visioncap/visioncap/imaging"
)

// S3BlobStore persists raw image bytes in an S3 bucket, one object per
// image ID. Repurposed from the teacher's AWS SDK v2 config-loading
// convention (originally wired to Bedrock), now fronting plain object
// storage instead of model invocation.
type S3BlobStore struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3BlobStore loads the default AWS config (region, credentials) the
// same way the teacher's Bedrock endpoint does, then targets bucket.
func NewS3BlobStore(ctx context.Context, region, bucket string) (*S3BlobStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("store: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3BlobStore{client: client, uploader: manager.NewUploader(client), bucket: bucket}, nil
}

func (s *S3BlobStore) Put(ctx context.Context, imageID string, imageBytes []byte) (BlobMetadata, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(imageID)})
	if err == nil {
		return s.metadata(imageID, imageBytes), nil
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(imageID),
		Body:   bytes.NewReader(imageBytes),
	})
	if err != nil {
		return BlobMetadata{}, fmt.Errorf("store: upload blob: %w", err)
	}
	return s.metadata(imageID, imageBytes), nil
}

func (s *S3BlobStore) metadata(imageID string, imageBytes []byte) BlobMetadata {
	meta := BlobMetadata{SizeBytes: int64(len(imageBytes)), StorageKey: imageID}
	if inspected, err := imaging.Inspect(imageBytes); err == nil {
		meta.Width, meta.Height, meta.Format = inspected.Width, inspected.Height, inspected.Format
	}
	return meta
}

func (s *S3BlobStore) Get(ctx context.Context, imageID string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(imageID)})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("store: blob %q not found", imageID)
		}
		return nil, fmt.Errorf("store: get blob: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("store: read blob body: %w", err)
	}
	return data, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, imageID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(imageID)})
	if err != nil {
		return fmt.Errorf("store: delete blob: %w", err)
	}
	return nil
}
