//go:build cgo

package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuTracker implements Tracker using KuzuDB as the backing store, so the
// replacement forest survives across reduction invocations and processes.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuTracker struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuTracker satisfies Tracker.
var _ Tracker = (*KuzuTracker)(nil)

// NewKuzuTracker creates a KuzuTracker backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the leaf directory itself for new
// databases.
func NewKuzuTracker(dbPath string) (*KuzuTracker, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(dbPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open file database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuTracker{db: db, conn: conn}, nil
}

// NewKuzuMemTracker creates a KuzuTracker backed by an in-memory KuzuDB
// instance. Used by tests.
func NewKuzuMemTracker() (*KuzuTracker, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(":memory:", cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuTracker{db: db, conn: conn}, nil
}

// ddlStatements defines the Cypher DDL executed by Init.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Instance(
		id STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS REPLACED_BY(FROM Instance TO Instance)`,
}

// Init creates the node and relationship tables if they do not exist.
func (t *KuzuTracker) Init(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := t.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// Record appends removed -> survivor to the persisted forest.
func (t *KuzuTracker) Record(ctx context.Context, removed, survivor string) error {
	if removed == survivor {
		panic(fmt.Sprintf("merge: recording %q as its own replacement", removed))
	}
	if prior, err := t.directSurvivor(removed); err != nil {
		return err
	} else if prior != "" {
		return fmt.Errorf("merge: %q was already replaced", removed)
	}
	root, err := t.Resolve(ctx, survivor)
	if err != nil {
		return err
	}
	if root == removed {
		return fmt.Errorf("merge: recording %q -> %q would create a replacement cycle", removed, survivor)
	}

	for _, id := range []string{removed, survivor} {
		if err := t.exec(
			"MERGE (i:Instance {id: $id})",
			map[string]any{"id": id},
		); err != nil {
			return err
		}
	}
	return t.exec(
		`MATCH (r:Instance {id: $removed}), (s:Instance {id: $survivor})
		 CREATE (r)-[:REPLACED_BY]->(s)`,
		map[string]any{"removed": removed, "survivor": survivor},
	)
}

// Resolve follows REPLACED_BY edges from id to the forest root. An instance
// never removed resolves to itself, so Resolve is idempotent.
func (t *KuzuTracker) Resolve(_ context.Context, id string) (string, error) {
	cur := id
	for {
		next, err := t.directSurvivor(cur)
		if err != nil {
			return "", err
		}
		if next == "" {
			return cur, nil
		}
		cur = next
	}
}

// Replacements returns the direct removed -> survivor mapping.
func (t *KuzuTracker) Replacements(_ context.Context) (map[string]string, error) {
	rows, err := t.query(
		"MATCH (r:Instance)-[:REPLACED_BY]->(s:Instance) RETURN r.id, s.id",
		nil,
	)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out[toString(row[0])] = toString(row[1])
	}
	return out, nil
}

// Close releases the KuzuDB connection and database.
func (t *KuzuTracker) Close() error {
	if t.conn != nil {
		t.conn.Close()
	}
	if t.db != nil {
		t.db.Close()
	}
	return nil
}

// directSurvivor returns the single-hop survivor of id, or "" if id was
// never removed.
func (t *KuzuTracker) directSurvivor(id string) (string, error) {
	rows, err := t.query(
		"MATCH (r:Instance {id: $id})-[:REPLACED_BY]->(s:Instance) RETURN s.id",
		map[string]any{"id": id},
	)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil
	}
	return toString(rows[0][0]), nil
}

// exec runs a parameterized Cypher statement that produces no result rows.
func (t *KuzuTracker) exec(cypher string, params map[string]any) error {
	stmt, err := t.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := t.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (t *KuzuTracker) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = t.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = t.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = t.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// toString converts a Kuzu value to a string, tolerating nils.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
