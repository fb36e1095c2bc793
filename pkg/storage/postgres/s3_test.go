package postgres

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	objects      map[string][]byte
	contentTypes map[string]string
	bucketExists bool
	putErr       error
	headErr      error
	createErr    error
	created      bool
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		bucketExists: true,
	}
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*params.Key] = data
	m.contentTypes[*params.Key] = *params.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	if !m.bucketExists {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3Client) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = true
	m.bucketExists = true
	return &s3.CreateBucketOutput{}, nil
}

func TestS3Client_PutAndDelete(t *testing.T) {
	mock := newMockS3Client()
	c := &S3Client{client: mock, bucket: "logos"}
	ctx := context.Background()

	require.NoError(t, c.PutObject(ctx, "tenants/1/logo.png", []byte("png"), "image/png"))
	assert.Equal(t, []byte("png"), mock.objects["tenants/1/logo.png"])
	assert.Equal(t, "image/png", mock.contentTypes["tenants/1/logo.png"])

	require.NoError(t, c.DeleteObject(ctx, "tenants/1/logo.png"))
	assert.NotContains(t, mock.objects, "tenants/1/logo.png")
}

func TestS3Client_PutError(t *testing.T) {
	mock := newMockS3Client()
	mock.putErr = errors.New("access denied")
	c := &S3Client{client: mock, bucket: "logos"}

	err := c.PutObject(context.Background(), "k", []byte("x"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload to s3")
}

func TestS3Client_EnsureBucket(t *testing.T) {
	t.Run("existing bucket is left alone", func(t *testing.T) {
		mock := newMockS3Client()
		c := &S3Client{client: mock, bucket: "logos"}
		require.NoError(t, c.ensureBucket(context.Background()))
		assert.False(t, mock.created)
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		mock := newMockS3Client()
		mock.bucketExists = false
		c := &S3Client{client: mock, bucket: "logos"}
		require.NoError(t, c.ensureBucket(context.Background()))
		assert.True(t, mock.created)
	})

	t.Run("creation race is tolerated", func(t *testing.T) {
		mock := newMockS3Client()
		mock.bucketExists = false
		mock.createErr = errors.New("BucketAlreadyOwnedByYou: owned")
		c := &S3Client{client: mock, bucket: "logos"}
		assert.NoError(t, c.ensureBucket(context.Background()))
	})

	t.Run("other creation errors surface", func(t *testing.T) {
		mock := newMockS3Client()
		mock.bucketExists = false
		mock.createErr = errors.New("AccessDenied")
		c := &S3Client{client: mock, bucket: "logos"}
		assert.Error(t, c.ensureBucket(context.Background()))
	})
}

func TestS3Client_HealthCheck(t *testing.T) {
	mock := newMockS3Client()
	c := &S3Client{client: mock, bucket: "logos"}
	assert.NoError(t, c.HealthCheck(context.Background()))

	mock.headErr = errors.New("timeout")
	assert.Error(t, c.HealthCheck(context.Background()))
}
