package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the slice of the DynamoDB client the store uses.
type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// dynamoItem is the single-table layout: partition key "collection",
// sort key "id", the body as a map attribute and a numeric version.
type dynamoItem struct {
	Collection string                 `dynamodbav:"collection"`
	ID         string                 `dynamodbav:"id"`
	Data       map[string]interface{} `dynamodbav:"data"`
	Version    int64                  `dynamodbav:"version"`
}

// DynamoStore is a Store backed by one DynamoDB table.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore returns a Store over the given table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) key(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"collection": &types.AttributeValueMemberS{Value: collection},
		"id":         &types.AttributeValueMemberS{Value: id},
	}
}

func (s *DynamoStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	p := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                aws.String(s.table),
		KeyConditionExpression:   aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{"#c": "collection"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: collection},
		},
		ConsistentRead: aws.Bool(true),
	})

	var docs []Document
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		for _, raw := range page.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshal %s item: %w", collection, err)
			}
			docs = append(docs, itemDocument(item))
		}
	}
	return docs, nil
}

func (s *DynamoStore) GetOne(ctx context.Context, collection, id string) (*Document, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(collection, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
	}
	doc := itemDocument(item)
	return &doc, nil
}

func (s *DynamoStore) Create(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	data, err := normalize(fields)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(dynamoItem{Collection: collection, ID: id, Data: data, Version: 1})
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DynamoStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	return s.update(ctx, collection, id, -1, fields)
}

func (s *DynamoStore) CompareAndUpdate(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]interface{}) error {
	return s.update(ctx, collection, id, expectedVersion, fields)
}

func (s *DynamoStore) update(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]interface{}) error {
	data, err := normalize(fields)
	if err != nil {
		return err
	}
	expr, err := buildUpdateExpression(data, expectedVersion)
	if err != nil {
		return fmt.Errorf("build update %s/%s: %w", collection, id, err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.table),
		Key:                                 s.key(collection, id),
		UpdateExpression:                    aws.String(expr.update),
		ConditionExpression:                 aws.String(expr.condition),
		ExpressionAttributeNames:            expr.names,
		ExpressionAttributeValues:           expr.values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return ErrNotFound
			}
			return ErrVersionConflict
		}
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

type updateExpression struct {
	update    string
	condition string
	names     map[string]string
	values    map[string]types.AttributeValue
}

// buildUpdateExpression sets each field under the data map and increments the
// version. A negative expectedVersion only requires the item to exist.
func buildUpdateExpression(fields map[string]interface{}, expectedVersion int64) (*updateExpression, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	expr := &updateExpression{
		names: map[string]string{"#version": "version", "#id": "id"},
		values: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	}

	if len(keys) > 0 {
		expr.names["#data"] = "data"
	}
	update := "SET "
	for i, k := range keys {
		av, err := attributevalue.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		n, v := "#f"+strconv.Itoa(i), ":v"+strconv.Itoa(i)
		expr.names[n] = k
		expr.values[v] = av
		update += "#data." + n + " = " + v + ", "
	}
	expr.update = update + "#version = #version + :one"

	if expectedVersion < 0 {
		expr.condition = "attribute_exists(#id)"
		return expr, nil
	}
	expr.values[":expected"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)}
	expr.condition = "attribute_exists(#id) AND #version = :expected"
	return expr, nil
}

func itemDocument(item dynamoItem) Document {
	if item.Data == nil {
		item.Data = map[string]interface{}{}
	}
	return Document{ID: item.ID, Version: item.Version, Data: item.Data}
}
