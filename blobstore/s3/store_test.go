package s3

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dluc/usearch/blobstore"
)

func TestStore_Open(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", "prefix")

	t.Run("NotFound", func(t *testing.T) {
		client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Bucket == "test-bucket" && *in.Key == "prefix/missing"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(context.Background(), "missing")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("ReadAt", func(t *testing.T) {
		client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Key == "prefix/idx"
		})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(11)}, nil).Once()
		client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return *in.Key == "prefix/idx" && *in.Range == "bytes=6-10"
		})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("world"))}, nil).Once()

		blob, err := store.Open(context.Background(), "idx")
		require.NoError(t, err)
		assert.Equal(t, int64(11), blob.Size())

		buf := make([]byte, 8)
		n, err := blob.ReadAt(context.Background(), buf, 6)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 5, n)
		assert.Equal(t, "world", string(buf[:n]))

		_, err = blob.ReadAt(context.Background(), buf, 11)
		assert.ErrorIs(t, err, io.EOF)
	})

	client.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", "prefix")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "prefix/CURRENT" && in.ChecksumCRC32C != nil && *in.ContentLength == 3
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "CURRENT", []byte("abc")))
	client.AssertExpectations(t)
}

func TestStore_Create(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", "prefix")

	var uploaded []byte
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "prefix/snap.usearch"
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3.PutObjectInput)
		uploaded, _ = io.ReadAll(in.Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	w, err := store.Create(context.Background(), "snap.usearch")
	require.NoError(t, err)
	_, err = w.Write([]byte("snapshot body"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "snapshot body", string(uploaded))
	client.AssertExpectations(t)
}

func TestStore_Delete(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", "prefix")

	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Bucket == "test-bucket" && *in.Key == "prefix/del"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	assert.NoError(t, store.Delete(context.Background(), "del"))
	client.AssertExpectations(t)
}

func TestStore_List(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", "prefix/")

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []types.Object{{Key: aws.String("prefix/b")}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("next"),
	}, nil).Once()
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken != nil && *in.ContinuationToken == "next"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{{Key: aws.String("prefix/a")}},
	}, nil).Once()

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
	client.AssertExpectations(t)
}

func TestIntegration_S3Store(t *testing.T) {
	bucket := os.Getenv("USEARCH_S3_BUCKET")
	if bucket == "" {
		t.Skip("USEARCH_S3_BUCKET not set")
	}
	ctx := context.Background()
	store, err := New(ctx, bucket, WithPrefix("usearch-test/"))
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "sample", []byte("hello")))
	blob, err := store.Open(ctx, "sample")
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = blobstore.ReadFull(ctx, blob, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
	require.NoError(t, store.Delete(ctx, "sample"))
}
