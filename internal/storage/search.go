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
	"strings"
)

// SearchQuery describes a search over the index.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Types restricts to row types (segment, paragraph, codeblock, ...).
// Sources restricts to documents indexed under those names.
// MaxWeight, when set, keeps only segment rows at most that deep (0 means unset).
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text      string
	Types     []string
	Sources   []string
	MaxWeight *int64
	Limit     int
	Offset    int
}

// SearchResult represents a single match row.
// Snippet is a highlighted excerpt using [ ] markers when FTS text is used.
type SearchResult struct {
	DocID   int64
	Type    string
	Source  string
	Path    string
	Snippet string
}

// Search performs full-text search with optional filters over the index.
// When q.Text is empty, it falls back to a non-FTS scan over documents with filters applied.
func Search(ctx context.Context, root string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrNoRoot
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT d.doc_id, d.type, d.source, d.path, snippet(fts_documents, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT d.doc_id, d.type, d.source, d.path, ''\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	if len(q.Types) > 0 {
		sb.WriteString(" AND d.type IN (" + placeholders(len(q.Types)) + ")\n")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if len(q.Sources) > 0 {
		sb.WriteString(" AND d.source IN (" + placeholders(len(q.Sources)) + ")\n")
		for _, s := range q.Sources {
			args = append(args, s)
		}
	}
	if q.MaxWeight != nil {
		sb.WriteString(" AND (d.weight IS NULL OR d.weight <= ?)\n")
		args = append(args, *q.MaxWeight)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY d.source, d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	return scanResults(rows)
}

// WhereUsed returns rows whose backrefs point at the anchor (kind, id). An empty kind
// matches anchors of any kind; backrefs written without a kind match any kind.
func WhereUsed(ctx context.Context, root, kind, id string, limit, offset int) ([]SearchResult, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrNoRoot
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("anchor id is required")
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT DISTINCT d.doc_id, d.type, d.source, d.path, d.text
		FROM cross_refs x
		JOIN documents d ON d.doc_id = x.from_id
		WHERE x.anchor_id = ? AND (? = '' OR x.anchor_kind = '' OR x.anchor_kind = ?)
		ORDER BY d.source, d.doc_id
		LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, q, id, kind, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("where-used query: %w", err)
	}
	return scanResults(rows)
}

// Definitions returns the rows defining anchors with the given id (and kind, when set).
func Definitions(ctx context.Context, root, kind, id string) ([]SearchResult, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrNoRoot
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	q := `SELECT d.doc_id, d.type, d.source, d.path, d.text
		FROM anchors a
		JOIN documents d ON d.doc_id = a.doc_id
		WHERE a.id = ? AND (? = '' OR a.kind = ?)
		ORDER BY d.source, d.doc_id`
	rows, err := db.QueryContext(ctx, q, id, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("definitions query: %w", err)
	}
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Type, &r.Source, &r.Path, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
