package records

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clc-ministry/forms-backend/pkg/dynamo/dynamotest"
)

var orders = Collection{Table: "orders", KeyAttr: "orderId"}

func newDynamo(t *testing.T) (*DynamoStore, *dynamotest.DB) {
	t.Helper()
	db := dynamotest.New()
	db.CreateTable(orders.Table, orders.KeyAttr)
	return NewDynamoStore(db), db
}

func TestDynamoCreateGuardsDuplicates(t *testing.T) {
	store, db := newDynamo(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, orders, "o-1", map[string]any{"name": "Ana", "quantity": 2}))
	err := store.Create(ctx, orders, "o-1", map[string]any{"name": "Ben"})
	require.ErrorIs(t, err, ErrAlreadyExists)

	item := db.Item(orders.Table, "o-1")
	require.NotNil(t, item)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Ana"}, item["name"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "o-1"}, item["orderId"])
}

func TestDynamoCreateRejectsEmptyID(t *testing.T) {
	store, _ := newDynamo(t)
	assert.Error(t, store.Create(context.Background(), orders, "", map[string]any{}))
	assert.Error(t, store.Create(context.Background(), Collection{}, "x", map[string]any{}))
}

func TestDynamoScanPaginates(t *testing.T) {
	store, db := newDynamo(t)
	db.PageSize = 2
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Create(ctx, orders, fmt.Sprintf("o-%d", i), map[string]any{"quantity": i}))
	}

	docs, err := store.Scan(ctx, orders)
	require.NoError(t, err)
	assert.Len(t, docs, 5)
}

func TestDynamoScanEmptyTable(t *testing.T) {
	store, _ := newDynamo(t)
	docs, err := store.Scan(context.Background(), orders)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestDynamoUpdate(t *testing.T) {
	store, db := newDynamo(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, orders, "o-1", map[string]any{"status": "pending"}))

	require.NoError(t, store.Update(ctx, orders, "o-1", Document{"status": "approved", "updatedAt": "2024-01-02T00:00:00.000Z"}))
	item := db.Item(orders.Table, "o-1")
	assert.Equal(t, &types.AttributeValueMemberS{Value: "approved"}, item["status"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2024-01-02T00:00:00.000Z"}, item["updatedAt"])

	err := store.Update(ctx, orders, "missing", Document{"status": "approved"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, db.Len(orders.Table))

	assert.Error(t, store.Update(ctx, orders, "o-1", Document{}))
}

func TestDynamoDelete(t *testing.T) {
	store, db := newDynamo(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, orders, "o-1", map[string]any{}))

	existed, err := store.Delete(ctx, orders, "o-1")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, 0, db.Len(orders.Table))

	existed, err = store.Delete(ctx, orders, "o-1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestDynamoPropagatesFailures(t *testing.T) {
	store, db := newDynamo(t)
	boom := errors.New("throttled")
	db.FailNext(boom)

	_, err := store.Scan(context.Background(), orders)
	require.ErrorIs(t, err, boom)
}

func TestSortNewestFirst(t *testing.T) {
	docs := []Document{
		{"id": "a", "createdAt": "2024-01-01T00:00:00.000Z"},
		{"id": "none"},
		{"id": "c", "createdAt": "2024-03-01T00:00:00.000Z"},
		{"id": "b", "createdAt": "2024-02-01T00:00:00.000Z"},
		{"id": "bad", "createdAt": 42},
	}
	SortNewestFirst(docs)

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d["id"].(string)
	}
	assert.Equal(t, []string{"c", "b", "a", "none", "bad"}, ids)
}
