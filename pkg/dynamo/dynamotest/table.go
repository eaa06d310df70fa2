// Package dynamotest provides an in-memory stand-in for the DynamoDB operations
// used by the record store. It understands the attribute_exists /
// attribute_not_exists conditions and SET update expressions produced by the
// expression builder.
package dynamotest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var conditionRe = regexp.MustCompile(`attribute_(not_)?exists\s*\(\s*([#\w]+)\s*\)`)

type table struct {
	keyAttr string
	items   map[string]map[string]types.AttributeValue
}

// DB is a concurrency-safe in-memory set of tables.
type DB struct {
	mu       sync.Mutex
	tables   map[string]*table
	failNext error

	// PageSize limits Scan pages when > 0 so pagination can be exercised.
	PageSize int
}

// New returns an empty DB.
func New() *DB {
	return &DB{tables: make(map[string]*table)}
}

// CreateTable registers a table whose partition key is the string attribute keyAttr.
func (d *DB) CreateTable(name, keyAttr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[name] = &table{keyAttr: keyAttr, items: make(map[string]map[string]types.AttributeValue)}
}

// FailNext makes the next operation return err.
func (d *DB) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = err
}

// Len returns the number of items in a table.
func (d *DB) Len(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tables[name]; ok {
		return len(t.items)
	}
	return 0
}

// Item returns a copy of the stored item, or nil.
func (d *DB) Item(name, id string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tables[name]
	if !ok {
		return nil
	}
	return copyItem(t.items[id])
}

func (d *DB) begin(name string) (*table, error) {
	if err := d.failNext; err != nil {
		d.failNext = nil
		return nil, err
	}
	t, ok := d.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: " + name)}
	}
	return t, nil
}

// PutItem implements dynamo.API.
func (d *DB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.begin(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	id, err := keyOf(t.keyAttr, in.Item)
	if err != nil {
		return nil, err
	}
	current := t.items[id]
	if err := checkCondition(aws.ToString(in.ConditionExpression), in.ExpressionAttributeNames, current); err != nil {
		return nil, err
	}
	t.items[id] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// Scan implements dynamo.API.
func (d *DB) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.begin(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(t.items))
	for id := range t.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if in.ExclusiveStartKey != nil {
		last, err := keyOf(t.keyAttr, in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = sort.SearchStrings(ids, last)
		if start < len(ids) && ids[start] == last {
			start++
		}
	}
	end := len(ids)
	limit := d.PageSize
	if in.Limit != nil && (limit == 0 || int(*in.Limit) < limit) {
		limit = int(*in.Limit)
	}
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	out := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, copyItem(t.items[id]))
	}
	out.Count = int32(len(out.Items))
	out.ScannedCount = out.Count
	if end < len(ids) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			t.keyAttr: &types.AttributeValueMemberS{Value: ids[end-1]},
		}
	}
	return out, nil
}

// UpdateItem implements dynamo.API.
func (d *DB) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.begin(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	id, err := keyOf(t.keyAttr, in.Key)
	if err != nil {
		return nil, err
	}
	current := t.items[id]
	if err := checkCondition(aws.ToString(in.ConditionExpression), in.ExpressionAttributeNames, current); err != nil {
		return nil, err
	}
	next := copyItem(current)
	if next == nil {
		next = copyItem(in.Key)
	}
	if err := applySet(aws.ToString(in.UpdateExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues, next); err != nil {
		return nil, err
	}
	t.items[id] = next
	out := &dynamodb.UpdateItemOutput{}
	if in.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = copyItem(next)
	}
	return out, nil
}

// DeleteItem implements dynamo.API.
func (d *DB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.begin(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	id, err := keyOf(t.keyAttr, in.Key)
	if err != nil {
		return nil, err
	}
	current := t.items[id]
	if err := checkCondition(aws.ToString(in.ConditionExpression), in.ExpressionAttributeNames, current); err != nil {
		return nil, err
	}
	delete(t.items, id)
	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && current != nil {
		out.Attributes = current
	}
	return out, nil
}

func keyOf(keyAttr string, item map[string]types.AttributeValue) (string, error) {
	v, ok := item[keyAttr].(*types.AttributeValueMemberS)
	if !ok || v.Value == "" {
		return "", fmt.Errorf("validation: missing string key attribute %q", keyAttr)
	}
	return v.Value, nil
}

func resolveName(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		if n, ok := names[token]; ok {
			return n
		}
	}
	return token
}

func checkCondition(expr string, names map[string]string, current map[string]types.AttributeValue) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	matches := conditionRe.FindAllStringSubmatch(expr, -1)
	if len(matches) == 0 {
		return fmt.Errorf("dynamotest: unsupported condition %q", expr)
	}
	for _, m := range matches {
		_, exists := current[resolveName(m[2], names)]
		if m[1] == "not_" && exists || m[1] == "" && !exists {
			return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	return nil
}

func applySet(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if len(expr) < 4 || !strings.EqualFold(expr[:4], "SET ") {
		return fmt.Errorf("dynamotest: unsupported update %q", expr)
	}
	for _, clause := range strings.Split(expr[4:], ",") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("dynamotest: unsupported clause %q", clause)
		}
		name := resolveName(strings.TrimSpace(parts[0]), names)
		v, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return fmt.Errorf("dynamotest: missing value for %q", clause)
		}
		item[name] = v
	}
	return nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
