package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/blobstore"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item

	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseURI := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}

	version := func(item map[string]types.AttributeValue) uint64 {
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	sort.Slice(items, func(i, j int) bool { return version(items[i]) > version(items[j]) })

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}

	return &dynamodb.QueryOutput{Items: items}, nil
}

type failingDDBClient struct {
	mockDDBClient
}

func (f *failingDDBClient) Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return nil, errors.New("throttled")
}

func readCurrent(t *testing.T, store blobstore.BlobStore) string {
	t.Helper()

	data, err := blobstore.ReadAll(context.Background(), store, blobstore.Current)
	require.NoError(t, err)

	return string(data)
}

func TestDDBCommitStore_FirstCommit(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "commits", "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, blobstore.Current, []byte("snapshots/00001")))
	assert.Equal(t, "snapshots/00001", readCurrent(t, store))

	blob, err := store.Open(ctx, blobstore.Current)
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, 9)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "snapshots", string(buf[:n]))

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
}

func TestDDBCommitStore_MultipleCommits(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "commits", "s3://test-bucket/test/")

	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Put(ctx, blobstore.Current, []byte(fmt.Sprintf("snapshots/%05d", i))))
	}

	assert.Equal(t, "snapshots/00012", readCurrent(t, store))

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), version)
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "commits", "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, blobstore.Current, []byte("snapshots/00001")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			err := store.Put(ctx, blobstore.Current, []byte(fmt.Sprintf("snapshots/%05d", id+2)))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case !errors.Is(err, ErrConcurrentModification):
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	assert.Positive(t, successes)

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1+successes), version)
}

func TestDDBCommitStore_NotFoundBeforeCommit(t *testing.T) {
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "commits", "s3://test-bucket/test/")

	_, err := store.Open(context.Background(), blobstore.Current)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()

	store1 := NewDDBCommitStore(blobstore.NewMemoryStore(), ddb, "commits", "s3://bucket-a/path/")
	store2 := NewDDBCommitStore(blobstore.NewMemoryStore(), ddb, "commits", "s3://bucket-b/path/")

	require.NoError(t, store1.Put(ctx, blobstore.Current, []byte("A")))
	require.NoError(t, store2.Put(ctx, blobstore.Current, []byte("B")))

	assert.Equal(t, "A", readCurrent(t, store1))
	assert.Equal(t, "B", readCurrent(t, store2))
}

func TestDDBCommitStore_DelegatesOtherBlobs(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewMemoryStore()
	store := NewDDBCommitStore(inner, newMockDDBClient(), "commits", "s3://b/p/")

	require.NoError(t, store.Put(ctx, "snapshots/1/docs.bin", []byte("docs")))

	data, err := blobstore.ReadAll(ctx, inner, "snapshots/1/docs.bin")
	require.NoError(t, err)
	assert.Equal(t, "docs", string(data))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/1/docs.bin"}, names)

	// CURRENT never reaches the wrapped store.
	require.NoError(t, store.Put(ctx, blobstore.Current, []byte("snapshots/1")))
	_, err = inner.Open(ctx, blobstore.Current)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	blob, err := store.Open(ctx, blobstore.Current)
	require.NoError(t, err)
	rc, err := blob.ReadRange(ctx, 10, 1)
	require.NoError(t, err)
	tail, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "1", string(tail))
}

func TestDDBCommitStore_QueryError(t *testing.T) {
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), &failingDDBClient{}, "commits", "s3://b/p/")

	err := store.Put(context.Background(), blobstore.Current, []byte("x"))
	require.ErrorContains(t, err, "throttled")

	_, err = store.Open(context.Background(), blobstore.Current)
	require.ErrorContains(t, err, "throttled")
}
