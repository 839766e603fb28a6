/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"turnip/internal/storage"
)

// SearchPG executes a search over the Postgres documents table using tsvector and filters
// and returns results mapped to storage.SearchResult to ease parity checks with the
// local index. DocIDs are Postgres ids and do not match the local ones.
func SearchPG(ctx context.Context, db *sql.DB, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	if strings.TrimSpace(q.Text) != "" {
		b.WriteString("SELECT d.id, d.doc_type, d.source, d.path, ")
		b.WriteString("COALESCE(ts_headline('simple', COALESCE(d.raw_text,''), plainto_tsquery('simple', $1), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM documents d WHERE d.search_vector @@ plainto_tsquery('simple', $1) ")
		args = append(args, q.Text)
	} else {
		b.WriteString("SELECT d.id, d.doc_type, d.source, d.path, '' FROM documents d WHERE TRUE ")
	}

	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.Types) > 0 {
		b.WriteString(" AND d.doc_type = ANY (" + place(q.Types) + ") ")
	}
	if len(q.Sources) > 0 {
		b.WriteString(" AND d.source = ANY (" + place(q.Sources) + ") ")
	}
	if q.MaxWeight != nil {
		b.WriteString(" AND (d.weight IS NULL OR d.weight <= " + place(*q.MaxWeight) + ") ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY d.source, d.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.DocID, &r.Type, &r.Source, &r.Path, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
