package memory

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

func TestSearchFilter(t *testing.T) {
	assert.Equal(t, bson.M{"namespace": "writer"}, searchFilter("writer", "  "))
	assert.Equal(t,
		bson.M{"namespace": "writer", "text": bson.M{"$regex": `tool_error:a\.b`}},
		searchFilter("writer", "Tool_Error:A.B"),
	)
}

// 需要真实 MongoDB：AGENTCREW_TEST_MONGO_URI=mongodb://localhost:27017
func TestMongoMemory_Integration(t *testing.T) {
	uri := os.Getenv("AGENTCREW_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("AGENTCREW_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)

	m := NewMongoMemory(client, "agentcrew_test", "memory_"+uuid.NewString()[:8], "writer", zap.NewNop())
	t.Cleanup(func() {
		_ = m.collection.Drop(context.Background())
		_ = m.Close()
	})
	require.NoError(t, m.EnsureIndexes(ctx))

	require.NoError(t, m.Add(ctx, "first", "an outline draft"))
	require.NoError(t, m.Add(ctx, "second", "the final outline"))
	require.NoError(t, m.Add(ctx, "first", "an outline draft, revised"))

	v, ok, err := m.Get(ctx, "first")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "an outline draft, revised", v)

	got, err := m.Search(ctx, "OUTLINE", 5)
	require.NoError(t, err)
	assert.Equal(t, []any{"an outline draft, revised", "the final outline"}, got)

	require.NoError(t, m.Clear(ctx))
	_, ok, err = m.Get(ctx, "first")
	require.NoError(t, err)
	assert.False(t, ok)
}
