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
	"log/slog"

	"github.com/google/uuid"

	applog "turnip/internal/log"
	"turnip/internal/storage"
)

// Publish replaces everything published under source with rows, in one transaction,
// and returns the new build id.
func Publish(ctx context.Context, db *sql.DB, source string, rows []storage.Row) (string, error) {
	if source == "" {
		return "", fmt.Errorf("publish: source name is required")
	}
	buildID := uuid.New()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	// documents, anchors and cross_refs cascade from sources
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE name=$1`, source); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("clear source: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO sources(name, build_id) VALUES($1, $2)`, source, buildID.String()); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("insert source: %w", err)
	}
	for _, r := range rows {
		var id int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO documents(source, doc_type, path, weight, raw_text) VALUES($1,$2,$3,$4,$5) RETURNING id`,
			source, r.Type, r.Path, r.Weight, r.Text).Scan(&id); err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("insert document %s: %w", r.Path, err)
		}
		for _, a := range r.Anchors {
			if _, err := tx.ExecContext(ctx, `INSERT INTO anchors(source, kind, id, document_id) VALUES($1,$2,$3,$4)`, source, a.Kind, a.ID, id); err != nil {
				_ = tx.Rollback()
				return "", fmt.Errorf("insert anchor %s: %w", a, err)
			}
		}
		for _, b := range r.Refs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO cross_refs(document_id, anchor_kind, anchor_id) VALUES($1,$2,$3) ON CONFLICT DO NOTHING`, id, b.Kind, b.ID); err != nil {
				_ = tx.Rollback()
				return "", fmt.Errorf("insert cross_ref: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	applog.WithComponent("backend").Info("document published",
		slog.String("source", source), slog.Int("rows", len(rows)), slog.String("build", buildID.String()))
	return buildID.String(), nil
}
