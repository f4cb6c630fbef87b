// Package knowledge records collection lineage in Neo4j: which user uploaded
// which document and the chunks it was split into.
package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Collection struct {
	UserID string
	ID     string
	Source string
	Chunks []Chunk
}

type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Graph writes lineage through a shared driver.
type Graph struct {
	driver neo4j.DriverWithContext
}

func NewGraph(driver neo4j.DriverWithContext) *Graph {
	return &Graph{driver: driver}
}

// SyncCollection upserts the user and collection nodes and replaces the
// collection's chunk nodes.
func (g *Graph) SyncCollection(ctx context.Context, col Collection) error {
	if g == nil || g.driver == nil {
		return errors.New("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"user_id":       col.UserID,
		"collection_id": col.ID,
		"source":        col.Source,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (u:User {id: $user_id})
			MERGE (c:Collection {user_id: $user_id, id: $collection_id})
			SET c.source = $source,
			    c.updated_at = datetime()
			MERGE (u)-[:OWNS]->(c)
		`, params); err != nil {
			return nil, fmt.Errorf("upsert collection node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (:Collection {user_id: $user_id, id: $collection_id})-[:HAS_CHUNK]->(ch:Chunk)
			DETACH DELETE ch
		`, params); err != nil {
			return nil, fmt.Errorf("clear existing chunk nodes: %w", err)
		}

		rows := make([]map[string]any, 0, len(col.Chunks))
		for _, chunk := range col.Chunks {
			rows = append(rows, map[string]any{
				"index": chunk.Index,
				"start": chunk.Start,
				"end":   chunk.End,
				"text":  chunk.Text,
			})
		}
		if _, err := tx.Run(ctx, `
			MATCH (c:Collection {user_id: $user_id, id: $collection_id})
			UNWIND $chunks AS row
			CREATE (ch:Chunk {index: row.index, start: row.start, end: row.end, text: row.text})
			CREATE (c)-[:HAS_CHUNK {order: row.index}]->(ch)
		`, map[string]any{
			"user_id":       col.UserID,
			"collection_id": col.ID,
			"chunks":        rows,
		}); err != nil {
			return nil, fmt.Errorf("create chunk nodes: %w", err)
		}

		return nil, nil
	})
	return err
}

// DeleteCollection removes the collection and its chunks. Deleting a missing
// collection is not an error.
func (g *Graph) DeleteCollection(ctx context.Context, userID, collectionID string) error {
	if g == nil || g.driver == nil {
		return errors.New("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (c:Collection {user_id: $user_id, id: $collection_id})
			OPTIONAL MATCH (c)-[:HAS_CHUNK]->(ch:Chunk)
			DETACH DELETE ch, c
		`, map[string]any{"user_id": userID, "collection_id": collectionID}); err != nil {
			return nil, fmt.Errorf("delete collection node: %w", err)
		}
		return nil, nil
	})
	return err
}

// ChunkCount returns how many chunk nodes hang off the user's collection.
func (g *Graph) ChunkCount(ctx context.Context, userID, collectionID string) (int, error) {
	if g == nil || g.driver == nil {
		return 0, errors.New("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (:User {id: $user_id})-[:OWNS]->(c:Collection {user_id: $user_id, id: $collection_id})
		OPTIONAL MATCH (c)-[:HAS_CHUNK]->(ch:Chunk)
		RETURN count(ch) AS chunks
	`, map[string]any{"user_id": userID, "collection_id": collectionID})
	if err != nil {
		return 0, fmt.Errorf("run chunk count query: %w", err)
	}

	if !result.Next(ctx) {
		return 0, result.Err()
	}
	value, _ := result.Record().Get("chunks")
	count, ok := value.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected chunk count type %T", value)
	}
	return int(count), nil
}
