package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docluster/blobstore"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *mockClient) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.UploadPartOutput)
	return out, args.Error(1)
}

func (m *mockClient) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.CreateMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *mockClient) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.CompleteMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *mockClient) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.AbortMultipartUploadOutput)
	return out, args.Error(1)
}

func newTestStore(c *mockClient, prefix string) *Store {
	return NewStore(c, "test-bucket", prefix, UploadConfig{})
}

func TestStore_Open(t *testing.T) {
	c := new(mockClient)
	store := newTestStore(c, "prefix")

	t.Run("NotFound", func(t *testing.T) {
		c.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Bucket == "test-bucket" && *in.Key == "prefix/foo"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(context.Background(), "foo")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		c.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Key == "prefix/bar"
		})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(100)}, nil).Once()

		blob, err := store.Open(context.Background(), "bar")
		require.NoError(t, err)
		assert.Equal(t, int64(100), blob.Size())
	})

	c.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	c := new(mockClient)
	store := newTestStore(c, "prefix")

	c.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return *in.Key == "prefix/results/a.dcr" &&
			string(body) == "123456789" &&
			aws.ToInt64(in.ContentLength) == 9 &&
			aws.ToString(in.ChecksumCRC32C) == "4waSgw=="
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "results/a.dcr", []byte("123456789")))
	c.AssertExpectations(t)
}

func TestStore_Delete(t *testing.T) {
	c := new(mockClient)
	store := newTestStore(c, "prefix")

	c.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "prefix/del"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()
	c.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "prefix/gone"
	})).Return(nil, &types.NoSuchKey{}).Once()

	assert.NoError(t, store.Delete(context.Background(), "del"))
	assert.NoError(t, store.Delete(context.Background(), "gone"))
	c.AssertExpectations(t)
}

func TestStore_List_Pagination(t *testing.T) {
	c := new(mockClient)
	store := newTestStore(c, "prefix/")

	c.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return *in.Prefix == "prefix/results/" && in.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("prefix/results/b")}},
	}, nil).Once()
	c.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken != nil && *in.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("prefix/results/a")}},
	}, nil).Once()

	names, err := store.List(context.Background(), "results/")
	require.NoError(t, err)
	assert.Equal(t, []string{"results/a", "results/b"}, names)
	c.AssertExpectations(t)
}

func TestBlob_ReadRange(t *testing.T) {
	c := new(mockClient)
	blob := &s3Blob{client: c, bucket: "b", key: "k", size: 10}

	c.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Key == "k" && *in.Range == "bytes=2-9"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("llo Worl")),
	}, nil).Once()

	r, err := blob.ReadRange(context.Background(), 2, 100)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "llo Worl", string(got))

	r, err = blob.ReadRange(context.Background(), 10, 5)
	require.NoError(t, err)
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)

	c.AssertExpectations(t)
}

func TestReadAll(t *testing.T) {
	c := new(mockClient)
	store := newTestStore(c, "")

	c.On("HeadObject", mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(5)}, nil).Once()
	c.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Key == "blob" && *in.Range == "bytes=0-4"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("hello"))}, nil).Once()

	data, err := blobstore.ReadAll(context.Background(), store, "blob", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
