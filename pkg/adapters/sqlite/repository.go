// Package sqlite implements ports.FlowRepository on SQLite using the pure Go
// modernc driver. Flows, nodes and edges live in separate tables; a per-flow
// sequence column preserves insertion order.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/callflow/pkg/domain"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("sqlite repository is closed")

const schema = `
CREATE TABLE IF NOT EXISTS flows (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 0,
	seq INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS nodes (
	flow_id TEXT NOT NULL,
	id TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	ai_message TEXT NOT NULL DEFAULT '',
	node_type TEXT NOT NULL,
	is_root INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL DEFAULT '',
	capture_field TEXT NOT NULL DEFAULT '',
	position_x REAL NOT NULL DEFAULT 0,
	position_y REAL NOT NULL DEFAULT 0,
	seq INTEGER NOT NULL,
	PRIMARY KEY (flow_id, id)
);
CREATE TABLE IF NOT EXISTS edges (
	flow_id TEXT NOT NULL,
	id TEXT NOT NULL,
	from_node_id TEXT NOT NULL,
	to_node_id TEXT NOT NULL,
	condition_value TEXT NOT NULL DEFAULT '',
	label TEXT NOT NULL DEFAULT '',
	seq INTEGER NOT NULL,
	PRIMARY KEY (flow_id, id)
);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(flow_id, from_node_id);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(flow_id, to_node_id);
`

// Repository persists flows to SQLite.
// It is suitable for single-process production use.
type Repository struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database at path. Use a file path; ":memory:"
// only works with a single connection.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close releases the database. It is safe to call twice.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

// LoadFlow reads a flow with its nodes and edges in insertion order.
func (r *Repository) LoadFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return domain.Flow{}, ErrClosed
	}

	var f domain.Flow
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_active FROM flows WHERE id = ?
	`, flowID).Scan(&f.ID, &f.Name, &f.Description, &f.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Flow{}, &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
	}
	if err != nil {
		return domain.Flow{}, fmt.Errorf("load flow: %w", err)
	}

	if f.Nodes, err = r.loadNodes(ctx, flowID); err != nil {
		return domain.Flow{}, err
	}
	if f.Edges, err = r.loadEdges(ctx, flowID); err != nil {
		return domain.Flow{}, err
	}
	return f, nil
}

func (r *Repository) loadNodes(ctx context.Context, flowID string) ([]domain.FlowNode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, label, ai_message, node_type, is_root, outcome, capture_field, position_x, position_y
		FROM nodes WHERE flow_id = ? ORDER BY seq
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	defer rows.Close()

	nodes := []domain.FlowNode{}
	for rows.Next() {
		var n domain.FlowNode
		var nodeType string
		if err := rows.Scan(&n.ID, &n.Label, &n.AIMessage, &nodeType, &n.IsRoot, &n.Outcome, &n.CaptureField, &n.PositionX, &n.PositionY); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Type = domain.NodeType(nodeType)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func (r *Repository) loadEdges(ctx context.Context, flowID string) ([]domain.FlowEdge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_node_id, to_node_id, condition_value, label
		FROM edges WHERE flow_id = ? ORDER BY seq
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer rows.Close()

	edges := []domain.FlowEdge{}
	for rows.Next() {
		var e domain.FlowEdge
		if err := rows.Scan(&e.ID, &e.FromNodeID, &e.ToNodeID, &e.ConditionValue, &e.Label); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

// ListFlows returns the catalogue in creation order with node counts.
func (r *Repository) ListFlows(ctx context.Context) ([]domain.FlowSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.description, f.is_active,
			(SELECT COUNT(*) FROM nodes n WHERE n.flow_id = f.id)
		FROM flows f ORDER BY f.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	out := []domain.FlowSummary{}
	for rows.Next() {
		var s domain.FlowSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.IsActive, &s.NodeCount); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flows: %w", err)
	}
	return out, nil
}

// CreateFlow inserts the flow row with its initial nodes and edges.
func (r *Repository) CreateFlow(ctx context.Context, flow domain.Flow) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM flows WHERE id = ?`, flow.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check flow: %w", err)
		}
		if exists > 0 {
			return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("flow %q already exists", flow.ID)}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO flows (id, name, description, is_active, seq)
			VALUES (?, ?, ?, ?, COALESCE((SELECT MAX(seq) FROM flows), 0) + 1)
		`, flow.ID, flow.Name, flow.Description, flow.IsActive)
		if err != nil {
			return fmt.Errorf("insert flow: %w", err)
		}

		for _, n := range flow.Nodes {
			if err := insertNode(ctx, tx, flow.ID, n); err != nil {
				return err
			}
		}
		for _, e := range flow.Edges {
			if err := insertEdge(ctx, tx, flow.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteFlow removes the flow with all its nodes and edges.
func (r *Repository) DeleteFlow(ctx context.Context, flowID string) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, flowID)
		if err != nil {
			return fmt.Errorf("delete flow: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE flow_id = ?`, flowID); err != nil {
			return fmt.Errorf("delete edges: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE flow_id = ?`, flowID); err != nil {
			return fmt.Errorf("delete nodes: %w", err)
		}
		return nil
	})
}

// UpdateFlowMeta applies the set fields of meta.
func (r *Repository) UpdateFlowMeta(ctx context.Context, flowID string, meta domain.FlowMeta) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		var f domain.Flow
		err := tx.QueryRowContext(ctx, `SELECT name, description, is_active FROM flows WHERE id = ?`, flowID).
			Scan(&f.Name, &f.Description, &f.IsActive)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
		}
		if err != nil {
			return fmt.Errorf("load flow: %w", err)
		}
		meta.ApplyTo(&f)
		_, err = tx.ExecContext(ctx, `UPDATE flows SET name = ?, description = ?, is_active = ? WHERE id = ?`,
			f.Name, f.Description, f.IsActive, flowID)
		if err != nil {
			return fmt.Errorf("update flow: %w", err)
		}
		return nil
	})
}

// CreateNode appends a node to the flow.
func (r *Repository) CreateNode(ctx context.Context, flowID string, node domain.FlowNode) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		if err := requireFlow(ctx, tx, flowID); err != nil {
			return err
		}
		return insertNode(ctx, tx, flowID, node)
	})
}

// UpdateNode patches a stored node.
func (r *Repository) UpdateNode(ctx context.Context, flowID, nodeID string, patch domain.NodePatch) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		var n domain.FlowNode
		var nodeType string
		err := tx.QueryRowContext(ctx, `
			SELECT id, label, ai_message, node_type, is_root, outcome, capture_field, position_x, position_y
			FROM nodes WHERE flow_id = ? AND id = ?
		`, flowID, nodeID).Scan(&n.ID, &n.Label, &n.AIMessage, &nodeType, &n.IsRoot, &n.Outcome, &n.CaptureField, &n.PositionX, &n.PositionY)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.NotFoundError{Kind: domain.KindNode, ID: nodeID}
		}
		if err != nil {
			return fmt.Errorf("load node: %w", err)
		}
		n.Type = domain.NodeType(nodeType)
		n = patch.ApplyTo(n)

		_, err = tx.ExecContext(ctx, `
			UPDATE nodes SET label = ?, ai_message = ?, node_type = ?, outcome = ?, capture_field = ?, position_x = ?, position_y = ?
			WHERE flow_id = ? AND id = ?
		`, n.Label, n.AIMessage, string(n.Type), n.Outcome, n.CaptureField, n.PositionX, n.PositionY, flowID, nodeID)
		if err != nil {
			return fmt.Errorf("update node: %w", err)
		}
		return nil
	})
}

// DeleteNode removes the node and every edge touching it.
func (r *Repository) DeleteNode(ctx context.Context, flowID, nodeID string) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE flow_id = ? AND id = ?`, flowID, nodeID)
		if err != nil {
			return fmt.Errorf("delete node: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.NotFoundError{Kind: domain.KindNode, ID: nodeID}
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM edges WHERE flow_id = ? AND (from_node_id = ? OR to_node_id = ?)
		`, flowID, nodeID, nodeID)
		if err != nil {
			return fmt.Errorf("delete incident edges: %w", err)
		}
		return nil
	})
}

// CreateEdge appends an edge after checking both endpoints exist.
func (r *Repository) CreateEdge(ctx context.Context, flowID string, edge domain.FlowEdge) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		if err := requireFlow(ctx, tx, flowID); err != nil {
			return err
		}
		for _, endpoint := range []string{edge.FromNodeID, edge.ToNodeID} {
			var count int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE flow_id = ? AND id = ?`, flowID, endpoint).Scan(&count)
			if err != nil {
				return fmt.Errorf("check endpoint: %w", err)
			}
			if count == 0 {
				return &domain.NotFoundError{Kind: domain.KindNode, ID: endpoint}
			}
		}
		return insertEdge(ctx, tx, flowID, edge)
	})
}

// DeleteEdge removes one edge.
func (r *Repository) DeleteEdge(ctx context.Context, flowID, edgeID string) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE flow_id = ? AND id = ?`, flowID, edgeID)
		if err != nil {
			return fmt.Errorf("delete edge: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.NotFoundError{Kind: domain.KindEdge, ID: edgeID}
		}
		return nil
	})
}

func (r *Repository) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func requireFlow(ctx context.Context, tx *sql.Tx, flowID string) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM flows WHERE id = ?`, flowID).Scan(&count); err != nil {
		return fmt.Errorf("check flow: %w", err)
	}
	if count == 0 {
		return &domain.NotFoundError{Kind: domain.KindFlow, ID: flowID}
	}
	return nil
}

func insertNode(ctx context.Context, tx *sql.Tx, flowID string, n domain.FlowNode) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE flow_id = ? AND id = ?`, flowID, n.ID).Scan(&count); err != nil {
		return fmt.Errorf("check node: %w", err)
	}
	if count > 0 {
		return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("node %q already exists", n.ID)}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (flow_id, id, label, ai_message, node_type, is_root, outcome, capture_field, position_x, position_y, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE((SELECT MAX(seq) FROM nodes WHERE flow_id = ?), 0) + 1)
	`, flowID, n.ID, n.Label, n.AIMessage, string(n.Type), n.IsRoot, n.Outcome, n.CaptureField, n.PositionX, n.PositionY, flowID)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	return nil
}

func insertEdge(ctx context.Context, tx *sql.Tx, flowID string, e domain.FlowEdge) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges WHERE flow_id = ? AND id = ?`, flowID, e.ID).Scan(&count); err != nil {
		return fmt.Errorf("check edge: %w", err)
	}
	if count > 0 {
		return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("edge %q already exists", e.ID)}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO edges (flow_id, id, from_node_id, to_node_id, condition_value, label, seq)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE((SELECT MAX(seq) FROM edges WHERE flow_id = ?), 0) + 1)
	`, flowID, e.ID, e.FromNodeID, e.ToNodeID, e.ConditionValue, e.Label, flowID)
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	return nil
}
