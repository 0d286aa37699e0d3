// Package exportsink archives generated CSV exports to S3 so admins have a
// record of what data left the system.
package exportsink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes exports under <prefix>/<dataset>/YYYY/MM/DD/<uuid>.csv.
type S3Sink struct {
	client putter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3 loads the default AWS credential chain for region.
func NewS3(ctx context.Context, region, bucket, prefix string) (*S3Sink, error) {
	if bucket == "" {
		return nil, errors.New("export bucket is empty")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newSink(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newSink(c putter, bucket, prefix string) *S3Sink {
	return &S3Sink{
		client: c,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Key builds the object key for a new export of dataset.
func (s *S3Sink) Key(dataset string) string {
	day := s.now().UTC().Format("2006/01/02")
	return path.Join(s.prefix, dataset, day, uuid.NewString()+".csv")
}

// Archive uploads body and returns the object key. requestedBy is stored as
// object metadata.
func (s *S3Sink) Archive(ctx context.Context, dataset, requestedBy string, body []byte) (string, error) {
	key := s.Key(dataset)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv; charset=utf-8"),
		Metadata: map[string]string{
			"dataset":      dataset,
			"requested-by": requestedBy,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return key, nil
}
