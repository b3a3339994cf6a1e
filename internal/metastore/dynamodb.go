package metastore

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

// DynamoAPI is the subset of the DynamoDB client the store calls.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDB stores one item per scope in a table whose partition key is
// the string attribute "scope".
type DynamoDB struct {
	client DynamoAPI
	table  string
}

type dynamoItem struct {
	Scope string `dynamodbav:"scope"`
	scorm.PackageMetadata
}

func NewDynamoDB(client DynamoAPI, table string) *DynamoDB {
	return &DynamoDB{client: client, table: table}
}

func (d *DynamoDB) key(s scorm.Scope) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"scope": &types.AttributeValueMemberS{Value: s.Key()},
	}
}

func (d *DynamoDB) Get(ctx context.Context, s scorm.Scope) (scorm.PackageMetadata, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(s),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return scorm.PackageMetadata{}, xerrors.Wrapf(err, "get item %s", s)
	}
	if out.Item == nil {
		return scorm.PackageMetadata{}, notFound(s)
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return scorm.PackageMetadata{}, xerrors.Wrapf(err, "decode item %s", s)
	}
	return item.PackageMetadata, nil
}

func (d *DynamoDB) Put(ctx context.Context, s scorm.Scope, meta scorm.PackageMetadata) error {
	item, err := attributevalue.MarshalMap(dynamoItem{Scope: s.Key(), PackageMetadata: meta})
	if err != nil {
		return xerrors.Wrapf(err, "encode item %s", s)
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}); err != nil {
		return xerrors.Wrapf(err, "put item %s", s)
	}
	return nil
}

func (d *DynamoDB) Delete(ctx context.Context, s scorm.Scope) error {
	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.key(s),
	}); err != nil {
		return xerrors.Wrapf(err, "delete item %s", s)
	}
	return nil
}

func (d *DynamoDB) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	var start map[string]types.AttributeValue
	for {
		page, err := d.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(d.table),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, xerrors.Wrap(err, "scan records")
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, xerrors.Wrap(err, "decode records")
		}
		for _, it := range items {
			s, err := scorm.ParseScope(it.Scope)
			if err != nil {
				return nil, err
			}
			out = append(out, Entry{Scope: s, Metadata: it.PackageMetadata})
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope.Key() < out[j].Scope.Key() })
	return out, nil
}

func (d *DynamoDB) Check(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	if err != nil {
		return xerrors.Wrapf(err, "describe table %s", d.table)
	}
	return nil
}

func (d *DynamoDB) Close() error { return nil }
