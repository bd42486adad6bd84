package eval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps datasets and runs in a SQLite database file.
type SQLiteStore struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, errors.Join(fmt.Errorf("enable foreign keys: %w", err), conn.Close())
	}

	s := &SQLiteStore{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		return nil, errors.Join(err, conn.Close())
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.conn.Close() }

func (s *SQLiteStore) Path() string { return s.path }

const migrationV1 = `
CREATE TABLE datasets (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE dataset_items (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_name TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
	input        TEXT NOT NULL,
	expected     TEXT NOT NULL
);
CREATE TABLE runs (
	id           TEXT PRIMARY KEY,
	dataset_name TEXT NOT NULL REFERENCES datasets(name),
	model        TEXT NOT NULL,
	prompt_set   TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL
);
CREATE TABLE run_items (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	item_id TEXT NOT NULL,
	output  TEXT NOT NULL,
	error   TEXT NOT NULL
);
CREATE TABLE scores (
	run_item_id INTEGER NOT NULL REFERENCES run_items(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	value       REAL NOT NULL,
	comment     TEXT NOT NULL
);
`

func (s *SQLiteStore) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1},
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			return errors.Join(fmt.Errorf("apply migration %d: %w", m.version, err), tx.Rollback())
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return errors.Join(fmt.Errorf("record migration %d: %w", m.version, err), tx.Rollback())
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) EnsureDataset(ctx context.Context, name string) (Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := Dataset{Name: name}
	err := s.conn.QueryRowContext(ctx, "SELECT description FROM datasets WHERE name = ?", name).Scan(&ds.Description)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.createDataset(ctx, defaultDataset(name))
	case err != nil:
		return Dataset{}, fmt.Errorf("get dataset %q: %w", name, err)
	}

	rows, err := s.conn.QueryContext(ctx, "SELECT id, input, expected FROM dataset_items WHERE dataset_name = ? ORDER BY id", name)
	if err != nil {
		return Dataset{}, fmt.Errorf("list items of %q: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id              int64
			input, expected string
			c               Case
		)
		if err := rows.Scan(&id, &input, &expected); err != nil {
			return Dataset{}, fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(input), &c.Input); err != nil {
			return Dataset{}, fmt.Errorf("decode item %d input: %w", id, err)
		}
		if err := json.Unmarshal([]byte(expected), &c.Expected); err != nil {
			return Dataset{}, fmt.Errorf("decode item %d expected: %w", id, err)
		}
		c.ID = fmt.Sprint(id)
		ds.Cases = append(ds.Cases, c)
	}
	return ds, rows.Err()
}

func (s *SQLiteStore) createDataset(ctx context.Context, ds Dataset) (Dataset, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return Dataset{}, fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO datasets (name, description) VALUES (?, ?)", ds.Name, ds.Description); err != nil {
		return Dataset{}, errors.Join(fmt.Errorf("insert dataset: %w", err), tx.Rollback())
	}
	for i, c := range ds.Cases {
		input, _ := json.Marshal(c.Input)
		expected, _ := json.Marshal(c.Expected)
		res, err := tx.ExecContext(ctx, "INSERT INTO dataset_items (dataset_name, input, expected) VALUES (?, ?, ?)",
			ds.Name, string(input), string(expected))
		if err != nil {
			return Dataset{}, errors.Join(fmt.Errorf("insert item: %w", err), tx.Rollback())
		}
		id, err := res.LastInsertId()
		if err != nil {
			return Dataset{}, errors.Join(fmt.Errorf("item id: %w", err), tx.Rollback())
		}
		ds.Cases[i].ID = fmt.Sprint(id)
	}
	if err := tx.Commit(); err != nil {
		return Dataset{}, fmt.Errorf("commit dataset: %w", err)
	}
	return ds, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, dataset_name, model, prompt_set, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID, run.Dataset, run.Model, run.PromptSet, run.StartedAt, run.FinishedAt); err != nil {
		return errors.Join(fmt.Errorf("insert run: %w", err), tx.Rollback())
	}

	for _, item := range run.Items {
		res, err := tx.ExecContext(ctx, "INSERT INTO run_items (run_id, item_id, output, error) VALUES (?, ?, ?, ?)",
			run.ID, item.Case.ID, item.Output, item.Error)
		if err != nil {
			return errors.Join(fmt.Errorf("insert run item: %w", err), tx.Rollback())
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return errors.Join(fmt.Errorf("run item id: %w", err), tx.Rollback())
		}
		for _, sc := range item.Scores {
			if _, err := tx.ExecContext(ctx, "INSERT INTO scores (run_item_id, name, value, comment) VALUES (?, ?, ?, ?)",
				itemID, sc.Name, sc.Value, sc.Comment); err != nil {
				return errors.Join(fmt.Errorf("insert score: %w", err), tx.Rollback())
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// RunScores returns the scores of a saved run keyed by item then score name.
func (s *SQLiteStore) RunScores(ctx context.Context, runID string) (map[string]map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT ri.item_id, sc.name, sc.value
		FROM run_items ri JOIN scores sc ON sc.run_item_id = ri.id
		WHERE ri.run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]float64{}
	for rows.Next() {
		var (
			item, name string
			value      float64
		)
		if err := rows.Scan(&item, &name, &value); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if out[item] == nil {
			out[item] = map[string]float64{}
		}
		out[item][name] = value
	}
	return out, rows.Err()
}
