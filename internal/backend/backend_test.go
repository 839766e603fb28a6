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
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"turnip/internal/builtins"
	"turnip/internal/doctree"
	"turnip/internal/parser"
	"turnip/internal/script"
	"turnip/internal/storage"
)

const parityDoc = `Hello from the preface.
[chapter]{Harbour [anchor("sec", "harbour")]}
Ships arrive at dawn. Hello again.
[section]{Market}
Fish and bread. See [ref("harbour")].
`

func openPGForTest(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TT_PG_DSN")
	if dsn == "" {
		t.Skip("TT_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	return db
}

func parseForTest(t *testing.T, name, text string) *doctree.Document {
	t.Helper()
	env := script.NewEnv()
	reg := doctree.NewAnchorRegistry()
	builtins.Install(env, reg)
	doc, err := parser.ParseString(name, text, env, parser.Options{Anchors: reg})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func pathSet(list []storage.SearchResult) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.Source+"#"+r.Path)
	}
	sort.Strings(out)
	return out
}

func TestOpenWithoutDSN(t *testing.T) {
	if _, err := Open(context.Background(), " "); !errors.Is(err, ErrNoDSN) {
		t.Fatalf("expected ErrNoDSN, got %v", err)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("migrations/0002_anchors.sql")
	if err != nil || v != 2 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("anchors.sql"); err == nil {
		t.Fatalf("expected error for name without version prefix")
	}
	if _, err := parseVersion("x_anchors.sql"); err == nil {
		t.Fatalf("expected error for non-numeric version")
	}
}

func TestSearchParity_SQLite_vs_Postgres(t *testing.T) {
	db := openPGForTest(t)
	defer func() { _ = db.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	source := "parity-" + uuid.NewString() + ".tt"
	doc := parseForTest(t, source, parityDoc)
	root := t.TempDir()
	if _, err := storage.IndexDocument(ctx, root, source, doc); err != nil {
		t.Fatalf("sqlite index: %v", err)
	}
	if _, err := Publish(ctx, db, source, storage.ExtractRows(doc)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM sources WHERE name=$1`, source) })

	zero := int64(0)
	cases := []struct {
		name string
		q    storage.SearchQuery
		want int
	}{
		{"fts_hello", storage.SearchQuery{Text: "Hello"}, 2},
		{"segments", storage.SearchQuery{Types: []string{storage.RowSegment}}, 2},
		{"chapters", storage.SearchQuery{Types: []string{storage.RowSegment}, MaxWeight: &zero}, 1},
		{"paragraphs", storage.SearchQuery{Types: []string{storage.RowParagraph}}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.q.Sources = []string{source}
			sres, err := storage.Search(ctx, root, tc.q)
			if err != nil {
				t.Fatalf("sqlite search: %v", err)
			}
			pres, err := SearchPG(ctx, db, tc.q)
			if err != nil {
				t.Fatalf("pg search: %v", err)
			}
			sset, pset := pathSet(sres), pathSet(pres)
			if len(sset) != tc.want || len(pset) != tc.want {
				t.Fatalf("mismatch sizes: sqlite=%v pg=%v want=%d", sset, pset, tc.want)
			}
			for i := range sset {
				if sset[i] != pset[i] {
					t.Fatalf("row sets differ: sqlite=%v pg=%v", sset, pset)
				}
			}
		})
	}
}

func TestPublishReplacesSource(t *testing.T) {
	db := openPGForTest(t)
	defer func() { _ = db.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	source := "replace-" + uuid.NewString() + ".tt"
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM sources WHERE name=$1`, source) })
	first, err := Publish(ctx, db, source, storage.ExtractRows(parseForTest(t, source, parityDoc)))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	second, err := Publish(ctx, db, source, storage.ExtractRows(parseForTest(t, source, "Just this.\n")))
	if err != nil {
		t.Fatalf("publish again: %v", err)
	}
	if first == second {
		t.Fatalf("expected a new build id")
	}
	var n, anchors int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE source=$1`, source).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anchors WHERE source=$1`, source).Scan(&anchors); err != nil {
		t.Fatalf("count anchors: %v", err)
	}
	if n != 1 || anchors != 0 {
		t.Fatalf("expected 1 row and no anchors after republish, got %d rows %d anchors", n, anchors)
	}
	var build string
	if err := db.QueryRowContext(ctx, `SELECT build_id::text FROM sources WHERE name=$1`, source).Scan(&build); err != nil {
		t.Fatalf("read build: %v", err)
	}
	if build != second {
		t.Fatalf("build id = %s, want %s", build, second)
	}
}
