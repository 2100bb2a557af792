package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dluc/usearch/blobstore"
)

// ErrConcurrentModification is returned when another publisher committed
// the same version first.
var ErrConcurrentModification = errors.New("s3: concurrent modification detected")

// DDBClient is the subset of the DynamoDB API the commit log needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitStore is a Store whose CURRENT blob lives in a DynamoDB table.
// Each commit appends a version with a conditional write, so two publishers
// racing on the same version cannot both win.
//
// Table schema: partition key base_uri (S), sort key version (N).
//
//	aws dynamodb create-table \
//	  --table-name usearch-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	*Store
	ddb       DDBClient
	tableName string
	baseURI   string
}

// NewCommitStore wraps store with a commit log in tableName. baseURI
// partitions the table, typically "s3://bucket/prefix".
func NewCommitStore(store *Store, ddb DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{Store: store, ddb: ddb, tableName: tableName, baseURI: baseURI}
}

// NewWithCommitLog creates a CommitStore from the default AWS configuration chain.
func NewWithCommitLog(ctx context.Context, bucket, tableName string, optFns ...Option) (*CommitStore, error) {
	opts, cfg, err := loadConfig(ctx, optFns)
	if err != nil {
		return nil, err
	}
	store, err := New(ctx, bucket, optFns...)
	if err != nil {
		return nil, err
	}
	uri := "s3://" + bucket + "/" + opts.Prefix
	return NewCommitStore(store, dynamodb.NewFromConfig(cfg), tableName, uri), nil
}

// Open resolves CURRENT from the commit log; other names go to S3.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != blobstore.CurrentName {
		return s.Store.Open(ctx, name)
	}
	version, snapshot, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return &currentBlob{content: []byte(snapshot)}, nil
}

// Put commits a new version when name is CURRENT.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != blobstore.CurrentName {
		return s.Store.Put(ctx, name, data)
	}
	_, err := s.commit(ctx, string(data))
	return err
}

// Latest returns the newest committed version and the snapshot it names.
// Version 0 means nothing was committed.
func (s *CommitStore) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query commit log: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: commit log item has no version")
	}
	nameAttr, ok := item["snapshot"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: commit log item has no snapshot")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: parse commit version: %w", err)
	}
	return version, nameAttr.Value, nil
}

func (s *CommitStore) commit(ctx context.Context, snapshot string) (uint64, error) {
	current, _, err := s.Latest(ctx)
	if err != nil {
		return 0, err
	}
	next := current + 1

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri": &types.AttributeValueMemberS{Value: s.baseURI},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"snapshot": &types.AttributeValueMemberS{Value: snapshot},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentModification
		}
		return 0, fmt.Errorf("s3: commit version %d: %w", next, err)
	}
	return next, nil
}

type currentBlob struct {
	content []byte
}

func (b *currentBlob) Close() error { return nil }

func (b *currentBlob) Size() int64 { return int64(len(b.content)) }

func (b *currentBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *currentBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b.content)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := min(off+length, int64(len(b.content)))
	return io.NopCloser(bytes.NewReader(b.content[off:end])), nil
}
