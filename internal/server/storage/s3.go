package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/davkeeper/internal/server/config"
)

// s3API is the part of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3 keeps user files in a bucket. A user's directory is the key prefix
// derived from StoragePath; an empty marker object makes it visible.
type S3 struct {
	client s3API
	bucket string
}

// NewS3 builds a client for an S3-compatible endpoint (MinIO in development).
func NewS3(ctx context.Context, cfg *sc.Config) (*S3, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3{client: client, bucket: cfg.S3Bucket}, nil
}

func (s *S3) EnsureDir(ctx context.Context, path string) error {
	key := prefixKey(path)

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	if len(out.Contents) > 0 {
		return nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("put marker: %w", err)
	}
	return nil
}

func (s *S3) Size(ctx context.Context, path string) (int64, error) {
	var total int64

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefixKey(path)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			total += aws.ToInt64(obj.Size)
		}
	}

	return total, nil
}

func prefixKey(path string) string {
	key := strings.TrimLeft(path, "/")
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return key
}
