package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/clc-ministry/forms-backend/pkg/dynamo"
)

// DynamoStore keeps each collection in its own DynamoDB table.
type DynamoStore struct {
	api dynamo.API
}

// NewDynamoStore creates a store backed by a DynamoDB client.
func NewDynamoStore(api dynamo.API) *DynamoStore {
	return &DynamoStore{api: api}
}

// Create puts item with an attribute_not_exists guard on the key attribute.
func (s *DynamoStore) Create(ctx context.Context, c Collection, id string, item any) error {
	if err := c.validate(id); err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	av[c.KeyAttr] = &types.AttributeValueMemberS{Value: id}

	cond := expression.AttributeNotExists(expression.Name(c.KeyAttr))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.Table),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("put %s %s: %w", c.Table, id, ErrAlreadyExists)
		}
		return fmt.Errorf("put %s: %w", c.Table, err)
	}
	return nil
}

// Scan pages through the whole table.
func (s *DynamoStore) Scan(ctx context.Context, c Collection) ([]Document, error) {
	if c.Table == "" {
		return nil, fmt.Errorf("collection not configured")
	}
	docs := []Document{}
	paginator := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{TableName: aws.String(c.Table)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.Table, err)
		}
		var batch []Document
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal scan page: %w", err)
		}
		docs = append(docs, batch...)
	}
	return docs, nil
}

// Update sets the given fields on an existing record.
func (s *DynamoStore) Update(ctx context.Context, c Collection, id string, fields Document) error {
	if err := c.validate(id); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update")
	}
	var update expression.UpdateBuilder
	for name, value := range fields {
		update = update.Set(expression.Name(name), expression.Value(value))
	}
	cond := expression.AttributeExists(expression.Name(c.KeyAttr))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.Table),
		Key:                       keyOf(c, id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("update %s %s: %w", c.Table, id, ErrNotFound)
		}
		return fmt.Errorf("update %s: %w", c.Table, err)
	}
	return nil
}

// Delete removes a record; the returned bool is false when nothing was stored under id.
func (s *DynamoStore) Delete(ctx context.Context, c Collection, id string) (bool, error) {
	if err := c.validate(id); err != nil {
		return false, err
	}
	out, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(c.Table),
		Key:          keyOf(c, id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", c.Table, err)
	}
	return len(out.Attributes) > 0, nil
}

func keyOf(c Collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{c.KeyAttr: &types.AttributeValueMemberS{Value: id}}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
