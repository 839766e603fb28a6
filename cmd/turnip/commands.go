/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"turnip/internal/backend"
	"turnip/internal/builtins"
	"turnip/internal/config"
	"turnip/internal/doctree"
	"turnip/internal/export"
	applog "turnip/internal/log"
	"turnip/internal/parser"
	"turnip/internal/script"
	"turnip/internal/source"
	"turnip/internal/storage"
	"turnip/internal/telemetry"
	"turnip/internal/version"
)

// docOptions are shared by every command that parses a document.
type docOptions struct {
	EnvFile string   `name:"env-file" type:"existingfile" help:"YAML file whose top-level keys seed the document environment"`
	Include []string `name:"include-path" short:"I" help:"Extra directory searched by include()"`
	Strict  bool     `name:"strict" help:"Fail when a ref does not resolve"`
}

// parsed is a document together with what produced it.
type parsed struct {
	doc     *doctree.Document
	anchors *doctree.AnchorRegistry
}

func (a *app) parseFile(path string, o docOptions) (*parsed, error) {
	a.crash.Document = path
	env := script.NewEnv()
	reg := doctree.NewAnchorRegistry()
	if o.EnvFile != "" {
		vars, err := loadEnvFile(o.EnvFile)
		if err != nil {
			return nil, err
		}
		env.Update(vars)
	}
	builtins.Install(env, reg)

	roots := append(append([]string(nil), o.Include...), a.cfg.Parser.IncludePaths...)
	p := parser.New(env, parser.Options{
		Resolver:        source.DirResolver{Roots: roots},
		MaxIncludeDepth: a.cfg.Parser.MaxIncludeDepth,
		Anchors:         reg,
		Logger:          applog.WithDocument(applog.WithComponent("parser"), path),
	})
	start := time.Now()
	doc, err := p.Parse(source.FromPath(path))
	stats := telemetry.ParseStats{Includes: p.Includes(), Duration: time.Since(start), Failed: err != nil}
	if err == nil {
		countNodes(doc, &stats)
	}
	telemetry.DocumentParsed(stats)
	if err != nil {
		return nil, err
	}

	var unresolved []error
	for _, e := range builtins.Unresolved(doc, reg) {
		unresolved = append(unresolved, e)
		fmt.Fprintln(a.errOut, "warning:", e)
	}
	if o.Strict && len(unresolved) > 0 {
		return nil, fmt.Errorf("%d unresolved reference(s): %w", len(unresolved), errors.Join(unresolved...))
	}
	return &parsed{doc: doc, anchors: reg}, nil
}

func countNodes(doc *doctree.Document, st *telemetry.ParseStats) {
	doctree.Walk(doc, func(n any, _ int) bool {
		switch n.(type) {
		case *doctree.DocSegment:
			st.Segments++
		case *doctree.Paragraph:
			st.Paragraphs++
		case *doctree.Sentence:
			st.Sentences++
		}
		return true
	})
}

// ParseCmd prints the parsed tree.
type ParseCmd struct {
	File string `arg:"" type:"existingfile" help:"Document to parse"`
	JSON bool   `name:"json" help:"Print the tree as JSON instead of an outline"`
	docOptions `embed:""`
}

func (c *ParseCmd) Run(a *app) error {
	p, err := a.parseFile(c.File, c.docOptions)
	if err != nil {
		return err
	}
	if !c.JSON {
		return export.Outline(a.out, p.doc)
	}
	data, err := export.JSON(p.doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

// IndexCmd parses a document into the workspace index.
type IndexCmd struct {
	File string `arg:"" type:"existingfile" help:"Document to index"`
	Root string `name:"root" default:"." type:"path" help:"Workspace root holding the index"`
	docOptions `embed:""`
}

func (c *IndexCmd) Run(a *app) error {
	a.crash.Root = c.Root
	p, err := a.parseFile(c.File, c.docOptions)
	if err != nil {
		return err
	}
	name := sourceName(c.Root, c.File)
	ctx := context.Background()
	rebuilt, err := storage.DetectAndRebuildIndex(ctx, c.Root, map[string]*doctree.Document{name: p.doc})
	if err != nil {
		return err
	}
	if rebuilt {
		fmt.Fprintf(a.out, "index was damaged and has been rebuilt from %s\n", name)
		return nil
	}
	build, err := storage.IndexDocument(ctx, c.Root, name, p.doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "indexed %s (%d rows, build %s)\n", name, len(storage.ExtractRows(p.doc)), build)
	return nil
}

// sourceName is file relative to root when it lies below it, else file as given.
func sourceName(root, file string) string {
	absRoot, err1 := filepath.Abs(root)
	absFile, err2 := filepath.Abs(file)
	if err1 != nil || err2 != nil {
		return filepath.ToSlash(file)
	}
	rel, err := filepath.Rel(absRoot, absFile)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}

// SearchCmd queries the local index or, with --pg, the Postgres mirror.
type SearchCmd struct {
	Query  []string `arg:"" optional:"" help:"FTS5 query; empty lists rows matching the filters"`
	Root   string   `name:"root" default:"." type:"path" help:"Workspace root holding the index"`
	Type   []string `name:"type" short:"t" help:"Restrict to row types (segment, paragraph, codeblock, ...)"`
	Source []string `name:"source" short:"s" help:"Restrict to documents indexed under these names"`
	Limit  int      `name:"limit" default:"20"`
	Offset int      `name:"offset"`
	PG     bool     `name:"pg" help:"Search the Postgres mirror"`
}

func (c *SearchCmd) Run(a *app) error {
	q := storage.SearchQuery{
		Text:    strings.Join(c.Query, " "),
		Types:   c.Type,
		Sources: c.Source,
		Limit:   c.Limit,
		Offset:  c.Offset,
	}
	var (
		res []storage.SearchResult
		err error
	)
	if c.PG {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout())
		defer cancel()
		db, oerr := backend.Open(ctx, withPassword(a.cfg.Backend.DSN, a.password))
		if oerr != nil {
			return oerr
		}
		defer db.Close()
		res, err = backend.SearchPG(ctx, db, q)
	} else {
		res, err = storage.Search(context.Background(), c.Root, q)
	}
	if err != nil {
		return err
	}
	for _, r := range res {
		fmt.Fprintf(a.out, "%s#%s\t%s\t%s\n", r.Source, r.Path, r.Type, r.Snippet)
	}
	if len(res) == 0 {
		fmt.Fprintln(a.out, "no matches")
	}
	return nil
}

// RefsCmd lists the definition and the uses of an anchor.
type RefsCmd struct {
	Kind string `arg:"" help:"Anchor kind, or 'any'"`
	ID   string `arg:"" help:"Anchor id"`
	Root string `name:"root" default:"." type:"path" help:"Workspace root holding the index"`
}

func (c *RefsCmd) Run(a *app) error {
	kind := c.Kind
	if kind == "any" {
		kind = ""
	}
	ctx := context.Background()
	defs, err := storage.Definitions(ctx, c.Root, kind, c.ID)
	if err != nil {
		return err
	}
	uses, err := storage.WhereUsed(ctx, c.Root, kind, c.ID, 0, 0)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		fmt.Fprintf(a.out, "%s is not defined\n", c.ID)
	}
	for _, d := range defs {
		fmt.Fprintf(a.out, "defined  %s#%s\n", d.Source, d.Path)
	}
	for _, u := range uses {
		fmt.Fprintf(a.out, "used     %s#%s\n", u.Source, u.Path)
	}
	return nil
}

// PublishCmd mirrors a document into Postgres.
type PublishCmd struct {
	File string `arg:"" type:"existingfile" help:"Document to publish"`
	DSN  string `name:"dsn" help:"Postgres connection string (default from config or TT_PG_DSN)"`
	Name string `name:"name" help:"Source name to publish under (default: the file path)"`
	docOptions `embed:""`
}

func (c *PublishCmd) Run(a *app) error {
	p, err := a.parseFile(c.File, c.docOptions)
	if err != nil {
		return err
	}
	dsn := c.DSN
	if dsn == "" {
		dsn = a.cfg.Backend.DSN
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout())
	defer cancel()
	db, err := backend.Open(ctx, withPassword(dsn, a.password))
	if err != nil {
		return err
	}
	defer db.Close()
	name := c.Name
	if name == "" {
		name = filepath.ToSlash(c.File)
	}
	rows := storage.ExtractRows(p.doc)
	build, err := backend.Publish(ctx, db, name, rows)
	if err != nil {
		return err
	}
	a.log.Info("published", slog.String("source", name), slog.String("build", build))
	fmt.Fprintf(a.out, "published %s (%d rows, build %s)\n", name, len(rows), build)
	return nil
}

// withPassword adds the keyring password to a URL-style DSN that names a user
// without one.
func withPassword(dsn, password string) string {
	if password == "" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") || u.User == nil {
		return dsn
	}
	if _, set := u.User.Password(); set {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String()
}

// ConfigCmd groups the configuration subcommands.
type ConfigCmd struct {
	Show           ConfigShowCmd   `cmd:"" help:"Print the effective configuration"`
	Path           ConfigPathCmd   `cmd:"" help:"Print the config file location"`
	ForgetPassword ConfigForgetCmd `cmd:"" name:"forget-password" help:"Remove the backend password from the OS keyring"`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(a *app) error {
	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return err
	}
	if _, err := a.out.Write(data); err != nil {
		return err
	}
	for _, key := range []string{
		"general.telemetry_opt_in", "parser.include_paths", "parser.max_include_depth",
		"index.dir_name", "backend.dsn", "backend.timeout_ms",
		"logging.level", "logging.format", "logging.source", "logging.file",
	} {
		if env, ok := config.EnvOverrideFor(key); ok {
			fmt.Fprintf(a.out, "# %s overridden by %s\n", key, env)
		}
	}
	if a.password != "" {
		fmt.Fprintln(a.out, "# backend password stored in keyring")
	}
	return nil
}

type ConfigPathCmd struct{}

func (c *ConfigPathCmd) Run(a *app) error {
	p, err := config.ConfigPath()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, p)
	return err
}

type ConfigForgetCmd struct{}

func (c *ConfigForgetCmd) Run(a *app) error {
	if err := config.ForgetPassword(); err != nil {
		return fmt.Errorf("forget password: %w", err)
	}
	a.password = ""
	_, err := fmt.Fprintln(a.out, "backend password removed")
	return err
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(a *app) error {
	_, err := fmt.Fprintln(a.out, "turnip", version.String())
	return err
}
