package knowledge

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/quizrag/config"
)

func TestNilGraphRejectsWrites(t *testing.T) {
	ctx := context.Background()
	var g *Graph

	assert.Error(t, g.SyncCollection(ctx, Collection{ID: "c1"}))
	assert.Error(t, NewGraph(nil).DeleteCollection(ctx, "u", "c1"))
	_, err := NewGraph(nil).ChunkCount(ctx, "u", "c1")
	assert.Error(t, err)
}

func TestSyncAndDeleteCollection(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	cfg := config.Load()
	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	require.NoError(t, err, "neo4j connection")
	defer driver.Close(ctx)

	g := NewGraph(driver)
	user := "it-" + uuid.NewString()
	collection := uuid.NewString()
	t.Cleanup(func() {
		_ = g.DeleteCollection(ctx, user, collection)
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (u:User {id: $id}) DETACH DELETE u", map[string]any{"id": user})
	})

	col := Collection{
		UserID: user,
		ID:     collection,
		Source: "paris.txt",
		Chunks: []Chunk{
			{Index: 0, Start: 0, End: 10, Text: "chunk one"},
			{Index: 1, Start: 8, End: 20, Text: "chunk two"},
		},
	}
	require.NoError(t, g.SyncCollection(ctx, col))
	// Re-syncing replaces rather than duplicates chunk nodes.
	require.NoError(t, g.SyncCollection(ctx, col))

	count, err := g.ChunkCount(ctx, user, collection)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, g.DeleteCollection(ctx, user, collection))
	count, err = g.ChunkCount(ctx, user, collection)
	require.NoError(t, err)
	assert.Zero(t, count)
}
