package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/diffra/blobstore"
)

// Catalog records which archive blob is the latest export of each dataset
// label, using DynamoDB conditional writes for the atomic compare-and-swap
// that S3 lacks. Multiple exporters can safely race: exactly one wins each
// version.
//
// Table schema:
//   - Partition key: label (string) - the dataset label
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name diffra-archives \
//	  --attribute-definitions AttributeName=label,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=label,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Catalog struct {
	client    DDBClient
	tableName string
}

// DDBClient is the interface for the DynamoDB operations the catalog uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrConcurrentCommit is returned when another exporter committed the same
// version first.
var ErrConcurrentCommit = errors.New("concurrent archive commit detected")

// NewCatalog creates an archive catalog over the given DynamoDB table.
func NewCatalog(client DDBClient, tableName string) *Catalog {
	return &Catalog{client: client, tableName: tableName}
}

// Latest returns the most recently committed archive name for label, or
// blobstore.ErrNotFound if no export was ever committed.
func (c *Catalog) Latest(ctx context.Context, label string) (string, uint64, error) {
	version, name, err := c.latestVersion(ctx, label)
	if err != nil {
		return "", 0, err
	}
	if version == 0 {
		return "", 0, blobstore.ErrNotFound
	}
	return name, version, nil
}

// Commit records archiveName as the next version for label. It fails with
// ErrConcurrentCommit if another exporter claimed that version first.
func (c *Catalog) Commit(ctx context.Context, label, archiveName string) (uint64, error) {
	version, _, err := c.latestVersion(ctx, label)
	if err != nil {
		return 0, err
	}
	next := version + 1

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"label":   &types.AttributeValueMemberS{Value: label},
			"version": &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"archive": &types.AttributeValueMemberS{Value: archiveName},
		},
		// Succeeds only if nobody wrote this (label, version) yet.
		ConditionExpression: aws.String("attribute_not_exists(#l) AND attribute_not_exists(version)"),
		ExpressionAttributeNames: map[string]string{
			"#l": "label",
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, ErrConcurrentCommit
		}
		return 0, fmt.Errorf("s3: commit archive version: %w", err)
	}
	return next, nil
}

// Forget removes one committed version, e.g. after deleting its blob.
func (c *Catalog) Forget(ctx context.Context, label string, version uint64) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"label":   &types.AttributeValueMemberS{Value: label},
			"version": &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
		},
	})
	return err
}

func (c *Catalog) latestVersion(ctx context.Context, label string) (uint64, string, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("#l = :label"),
		ExpressionAttributeNames: map[string]string{
			"#l": "label",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":label": &types.AttributeValueMemberS{Value: label},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query archive catalog: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	vAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", fmt.Errorf("s3: malformed catalog item for %q", label)
	}
	version, err := strconv.ParseUint(vAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: malformed catalog version: %w", err)
	}

	name := ""
	if aAttr, ok := item["archive"].(*types.AttributeValueMemberS); ok {
		name = aAttr.Value
	}
	return version, name, nil
}
