package graph

import (
	"context"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
	"github.com/yungbote/coursetree-backend/internal/platform/neo4jdb"
)

// TreeRows flattens an assembled tree into the node and edge rows sent to Cypher UNWIND.
func TreeRows(bookID string, root *tree.Node, now time.Time) (nodes []map[string]any, edges []map[string]any) {
	if root == nil {
		return nil, nil
	}
	syncedAt := now.UTC().Format(time.RFC3339Nano)
	root.Walk(func(n *tree.Node) bool {
		if strings.TrimSpace(n.ID) == "" {
			return false
		}
		nodes = append(nodes, map[string]any{
			"id":          n.ID,
			"book_id":     bookID,
			"level":       n.Level.String(),
			"title":       n.Title,
			"description": n.Description,
			"content":     n.Content,
			"order":       int64(n.Order),
			"mandatory":   n.Mandatory,
			"is_root":     n == root,
			"synced_at":   syncedAt,
		})
		for _, c := range n.Children {
			if c == nil || strings.TrimSpace(c.ID) == "" {
				continue
			}
			edges = append(edges, map[string]any{
				"from_id":   n.ID,
				"to_id":     c.ID,
				"book_id":   bookID,
				"order":     int64(c.Order),
				"synced_at": syncedAt,
			})
		}
		return true
	})
	return nodes, edges
}

// UpsertTreeGraph projects a finished tree into Neo4j. A nil client is a no-op.
func UpsertTreeGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, bookID string, root *tree.Node) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" || root == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	nodes, edges := TreeRows(bookID, root, time.Now())

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Best-effort schema init.
	{
		stmts := []string{
			`CREATE CONSTRAINT tree_node_id_unique IF NOT EXISTS FOR (n:TreeNode) REQUIRE n.id IS UNIQUE`,
			`CREATE CONSTRAINT tree_book_id_unique IF NOT EXISTS FOR (b:TreeBook) REQUIRE b.id IS UNIQUE`,
		}
		for _, q := range stmts {
			if res, err := session.Run(ctx, q, nil); err != nil {
				if log != nil {
					log.Warn("neo4j schema init failed (continuing)", "error", err)
				}
			} else {
				_, _ = res.Consume(ctx)
			}
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (b:TreeBook {id: $book_id})
SET b.root_id = $root_id, b.title = $title, b.synced_at = $synced_at
`, map[string]any{
			"book_id":   bookID,
			"root_id":   root.ID,
			"title":     root.Title,
			"synced_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (tn:TreeNode {id: n.id})
SET tn += n
WITH tn, n
MATCH (b:TreeBook {id: n.book_id})
MERGE (b)-[:CONTAINS]->(tn)
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(edges) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $edges AS r
MATCH (a:TreeNode {id: r.from_id})
MATCH (b:TreeNode {id: r.to_id})
MERGE (a)-[e:HAS_CHILD]->(b)
SET e.order = r.order,
    e.book_id = r.book_id,
    e.synced_at = r.synced_at
`, map[string]any{"edges": edges})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
