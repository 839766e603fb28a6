/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"turnip/internal/doctree"
	applog "turnip/internal/log"
	"turnip/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName is the default directory holding all per-workspace derived data under the workspace root.
	IndexDirName  = ".turnip"
	IndexFileName = "index.sqlite"
	// BackupsDirName and CrashDirName live inside IndexDirName.
	BackupsDirName = "backups"
	CrashDirName   = "crash"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 3
)

// ErrNoRoot is returned when an index operation is called without a workspace root.
var ErrNoRoot = errors.New("workspace root is required")

var indexDirName = IndexDirName

// UseIndexDir changes the directory name used under every workspace root. An empty
// name restores IndexDirName. Call it once at startup, before any index is opened.
func UseIndexDir(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = IndexDirName
	}
	indexDirName = name
}

// IndexDir returns the directory holding derived data for root.
func IndexDir(root string) string {
	return filepath.Join(root, indexDirName)
}

// IndexPath returns the full path to the workspace's index database file.
func IndexPath(root string) string {
	return filepath.Join(IndexDir(root), IndexFileName)
}

// InitOrOpenIndex ensures that the per-workspace SQLite index exists at .turnip/index.sqlite,
// opens the database, enables WAL mode, and ensures the meta/version tables exist.
// The returned *sql.DB is ready for use. Callers may close it when no longer needed.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, ErrNoRoot
	}
	if err := os.MkdirAll(IndexDir(root), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	path := IndexPath(root)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// lookup indexes for where-used and anchor resolution; fresh
			// databases get them from ensureIndexSchema
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_cross_refs_anchor ON cross_refs(anchor_id, anchor_kind);`,
				`CREATE INDEX IF NOT EXISTS idx_anchors_id ON anchors(id, kind);`,
			}
		case 3:
			// contentless fts could not produce snippets; read text from documents instead
			stmts = []string{
				`DROP TRIGGER IF EXISTS documents_ai;`,
				`DROP TRIGGER IF EXISTS documents_ad;`,
				`DROP TRIGGER IF EXISTS documents_au;`,
				`DROP TABLE IF EXISTS fts_documents;`,
				ftsTable,
			}
			stmts = append(stmts, ftsTriggers...)
			stmts = append(stmts, `INSERT INTO fts_documents(fts_documents) VALUES('rebuild');`)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		// best-effort, outside the tx
		_, _ = db.ExecContext(ctx, `INSERT INTO fts_documents(fts_documents) VALUES('optimize')`)
		cur = next
	}
	return nil
}

// ftsTable indexes documents.text as an external-content FTS5 table, so
// snippet() can read the stored text back.
const ftsTable = `CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
	text,
	content='documents',
	content_rowid='doc_id',
	tokenize = 'unicode61'
);`

// ftsTriggers keep fts_documents in step with documents. Deletes must pass
// the old text for external-content tables.
var ftsTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
		INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
		INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE OF text ON documents BEGIN
		INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
		INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
	END;`,
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per searchable unit of a parsed source.
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id   INTEGER PRIMARY KEY,
			type     TEXT    NOT NULL,
			path     TEXT    NOT NULL,
			source   TEXT    NOT NULL,
			weight   INTEGER,
			text     TEXT,
			build_id TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source, path);`,

		ftsTable,

		// Anchors defined by a row.
		`CREATE TABLE IF NOT EXISTS anchors (
			kind   TEXT    NOT NULL,
			id     TEXT    NOT NULL,
			source TEXT    NOT NULL,
			doc_id INTEGER NOT NULL,
			PRIMARY KEY(source, kind, id),
			FOREIGN KEY(doc_id) REFERENCES documents(doc_id) ON DELETE CASCADE
		);`,

		// Backrefs used by a row. The target is kept by name so references into
		// sources that are not indexed yet survive.
		`CREATE TABLE IF NOT EXISTS cross_refs (
			from_id     INTEGER NOT NULL,
			anchor_kind TEXT    NOT NULL DEFAULT '',
			anchor_id   TEXT    NOT NULL,
			PRIMARY KEY(from_id, anchor_kind, anchor_id),
			FOREIGN KEY(from_id) REFERENCES documents(doc_id) ON DELETE CASCADE
		);`,

		`CREATE INDEX IF NOT EXISTS idx_cross_refs_anchor ON cross_refs(anchor_id, anchor_kind);`,
		`CREATE INDEX IF NOT EXISTS idx_anchors_id ON anchors(id, kind);`,

		// Last build per source.
		`CREATE TABLE IF NOT EXISTS builds (
			source     TEXT PRIMARY KEY,
			build_id   TEXT NOT NULL,
			rows       INTEGER NOT NULL,
			indexed_at TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	for _, q := range ftsTriggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// IndexDocument replaces everything indexed for source with the rows of doc, in one
// transaction. It returns the id of the new build.
func IndexDocument(ctx context.Context, root, source string, doc *doctree.Document) (string, error) {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return "", err
	}
	defer db.Close()
	return indexDocument(ctx, db, source, doc)
}

func indexDocument(ctx context.Context, db *sql.DB, source string, doc *doctree.Document) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", errors.New("source name is required")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "index_document").With(slog.String("source", source))
	rows := ExtractRows(doc)
	buildID := uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	// foreign keys cascade to anchors and cross_refs
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE source=?;", source); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("clear documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM anchors WHERE source=?;", source); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("clear anchors: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO documents(type, path, source, weight, text, build_id) VALUES(?,?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range rows {
		res, err := ins.ExecContext(ctx, r.Type, r.Path, source, r.Weight, r.Text, buildID)
		if err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("insert document: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("document id: %w", err)
		}
		for _, a := range r.Anchors {
			if _, err := tx.ExecContext(ctx, "INSERT INTO anchors(kind, id, source, doc_id) VALUES(?,?,?,?);", a.Kind, a.ID, source, id); err != nil {
				_ = tx.Rollback()
				return "", fmt.Errorf("insert anchor %s: %w", a, err)
			}
		}
		for _, b := range r.Refs {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO cross_refs(from_id, anchor_kind, anchor_id) VALUES(?,?,?);", id, b.Kind, b.ID); err != nil {
				_ = tx.Rollback()
				return "", fmt.Errorf("insert cross_ref: %w", err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO builds(source, build_id, rows, indexed_at) VALUES(?,?,?,?)
		ON CONFLICT(source) DO UPDATE SET build_id=excluded.build_id, rows=excluded.rows, indexed_at=excluded.indexed_at;`,
		source, buildID, len(rows), time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("record build: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	l.Info("document indexed", slog.Int("rows", len(rows)), slog.String("build", buildID))
	return buildID, nil
}

// RemoveDocument drops everything indexed for source.
func RemoveDocument(ctx context.Context, root, source string) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, q := range []string{
		"DELETE FROM documents WHERE source=?;",
		"DELETE FROM anchors WHERE source=?;",
		"DELETE FROM builds WHERE source=?;",
	} {
		if _, err := db.ExecContext(ctx, q, source); err != nil {
			return fmt.Errorf("remove %s: %w", source, err)
		}
	}
	return nil
}

// RebuildIndex drops and recreates the core index tables and indexes docs, keyed by
// source name. Meta and version tables are preserved.
func RebuildIndex(ctx context.Context, root string, docs map[string]*doctree.Document) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS cross_refs;",
		"DROP TABLE IF EXISTS anchors;",
		"DROP TABLE IF EXISTS builds;",
		"DROP TRIGGER IF EXISTS documents_ai;",
		"DROP TRIGGER IF EXISTS documents_ad;",
		"DROP TRIGGER IF EXISTS documents_au;",
		"DROP TABLE IF EXISTS documents;",
		"DROP TABLE IF EXISTS fts_documents;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	for name, doc := range docs {
		if _, err := indexDocument(ctx, db, name, doc); err != nil {
			return err
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index
// from docs if needed. It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, root string, docs map[string]*doctree.Document) (bool, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_check").With(slog.String("root", root))
	path := IndexPath(root)
	db, err := InitOrOpenIndex(root)
	if err != nil {
		l.Warn("index unreadable, rebuilding", slog.Any("err", err))
		backupIndexFile(path)
		removeIndexFiles(path)
		if rbErr := RebuildIndex(ctx, root, docs); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM documents LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	l.Warn("index failed integrity check, rebuilding")
	backupIndexFile(path)
	removeIndexFiles(path)
	if err := RebuildIndex(ctx, root, docs); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup next to it.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeIndexFiles(indexPath string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(indexPath + suffix)
	}
}
