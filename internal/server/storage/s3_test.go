package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	sc "github.com/dmitrijs2005/davkeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	putKeys  []string
	putErr   error
	pages    [][]types.Object
	listErr  error
	prefixes []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.putKeys = append(f.putKeys, aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.prefixes = append(f.prefixes, aws.ToString(in.Prefix))
	if len(f.pages) == 0 {
		return &s3.ListObjectsV2Output{}, nil
	}

	idx := 0
	if in.ContinuationToken != nil {
		idx = len(aws.ToString(in.ContinuationToken))
	}
	out := &s3.ListObjectsV2Output{Contents: f.pages[idx]}
	if idx+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		// continuation token length encodes the next page index
		next := make([]byte, idx+1)
		for i := range next {
			next[i] = 'x'
		}
		out.NextContinuationToken = aws.String(string(next))
	}
	return out, nil
}

func TestS3_EnsureDir(t *testing.T) {
	f := &fakeS3{}
	s := &S3{client: f, bucket: "b"}

	require.NoError(t, s.EnsureDir(context.Background(), "/users/bob/"))
	assert.Equal(t, []string{"users/bob/"}, f.putKeys)
	assert.Equal(t, []string{"users/bob/"}, f.prefixes)

	f.putErr = errors.New("denied")
	assert.ErrorIs(t, s.EnsureDir(context.Background(), "users/bob/"), f.putErr)
}

func TestS3_EnsureDirExisting(t *testing.T) {
	f := &fakeS3{pages: [][]types.Object{{{Key: aws.String("users/bob/x"), Size: aws.Int64(1)}}}}
	s := &S3{client: f, bucket: "b"}

	require.NoError(t, s.EnsureDir(context.Background(), "users/bob/"))
	assert.Empty(t, f.putKeys)

	f.listErr = errors.New("gone")
	assert.ErrorIs(t, s.EnsureDir(context.Background(), "users/bob/"), f.listErr)
}

func TestS3_SizeAcrossPages(t *testing.T) {
	f := &fakeS3{pages: [][]types.Object{
		{{Key: aws.String("users/bob/"), Size: aws.Int64(0)}, {Key: aws.String("users/bob/a"), Size: aws.Int64(10)}},
		{{Key: aws.String("users/bob/b"), Size: aws.Int64(32)}},
	}}
	s := &S3{client: f, bucket: "b"}

	size, err := s.Size(context.Background(), "users/bob")
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)
	assert.Equal(t, []string{"users/bob/", "users/bob/"}, f.prefixes)
}

func TestS3_SizeError(t *testing.T) {
	f := &fakeS3{listErr: errors.New("gone")}
	s := &S3{client: f, bucket: "b"}

	_, err := s.Size(context.Background(), "users/bob/")
	assert.ErrorIs(t, err, f.listErr)
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	cfg := &sc.Config{}
	cfg.LoadDefaults()

	b, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, b)

	cfg.StorageBackend = "floppy"
	_, err = New(ctx, cfg)
	assert.Error(t, err)
}

func TestNewS3_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	cfg := &sc.Config{}
	cfg.LoadDefaults()
	cfg.StorageBackend = sc.StorageS3

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewS3_UsesEndpoint(t *testing.T) {
	origClient := newS3ClientFromConfig
	t.Cleanup(func() { newS3ClientFromConfig = origClient })

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &fakeS3{}
	}

	cfg := &sc.Config{}
	cfg.LoadDefaults()

	s, err := NewS3(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.S3Bucket, s.bucket)
	assert.Equal(t, cfg.S3BaseEndpoint, aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}
