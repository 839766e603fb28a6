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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnip/internal/config"
	"turnip/internal/crash"
	"turnip/internal/export"
	applog "turnip/internal/log"
)

const doc = `Intro line.

[chapter]{One [anchor("sec", "one")]}
Hello there. See [ref("one", "sec")].
[section]{Inner}
Turnips grow slowly.
`

func newTestApp() (*app, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &app{
		cfg:    config.Defaults(),
		out:    out,
		errOut: errOut,
		crash:  &crash.Context{},
		log:    applog.WithComponent("cli"),
	}, out, errOut
}

func run(t *testing.T, a *app, args ...string) error {
	t.Helper()
	var c cli
	k, err := kong.New(&c, kong.Name("turnip"), kong.Exit(func(int) { t.Fatalf("kong exited for %v", args) }))
	require.NoError(t, err)
	kctx, err := k.Parse(args)
	require.NoError(t, err)
	return kctx.Run(a)
}

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
	return p
}

func TestParseOutline(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "doc.tt", doc)
	a, out, _ := newTestApp()

	require.NoError(t, run(t, a, "parse", f))
	assert.Contains(t, out.String(), "document")
	assert.Contains(t, out.String(), `segment w=0 "One"`)
	assert.Contains(t, out.String(), `  segment w=1 "Inner"`)
	assert.Contains(t, out.String(), "Turnips grow slowly.")
	assert.Equal(t, f, a.crash.Document)
}

func TestParseJSONValidates(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "doc.tt", doc)
	a, out, _ := newTestApp()

	require.NoError(t, run(t, a, "parse", "--json", f))
	assert.NoError(t, export.Validate(out.Bytes()))
}

func TestParseEnvFile(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "doc.tt", "Dear [name], you owe [amount].\n")
	env := writeFile(t, dir, "env.yaml", "name: Bob\namount: 3\n")
	a, out, _ := newTestApp()

	require.NoError(t, run(t, a, "parse", "--env-file", env, f))
	assert.Contains(t, out.String(), "Dear Bob, you owe 3.")
}

func TestParseIncludePath(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib")
	require.NoError(t, os.Mkdir(lib, 0o755))
	writeFile(t, lib, "part.tt", "Included text.\n")
	f := writeFile(t, dir, "doc.tt", "[include(\"part.tt\")]\n")
	a, out, _ := newTestApp()

	require.NoError(t, run(t, a, "parse", "-I", lib, f))
	assert.Contains(t, out.String(), "Included text.")
}

func TestUnresolvedRefs(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "doc.tt", "See [ref(\"nowhere\")].\n")

	a, _, errOut := newTestApp()
	require.NoError(t, run(t, a, "parse", f))
	assert.Contains(t, errOut.String(), "warning:")

	a, _, _ = newTestApp()
	err := run(t, a, "parse", "--strict", f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved")
}

func TestIndexSearchRefs(t *testing.T) {
	root := t.TempDir()
	f := writeFile(t, root, "doc.tt", doc)

	a, out, _ := newTestApp()
	require.NoError(t, run(t, a, "index", "--root", root, f))
	assert.Contains(t, out.String(), "indexed doc.tt")
	assert.Equal(t, root, a.crash.Root)

	a, out, _ = newTestApp()
	require.NoError(t, run(t, a, "search", "--root", root, "turnips"))
	assert.Contains(t, out.String(), "doc.tt#s1.1/p1")

	a, out, _ = newTestApp()
	require.NoError(t, run(t, a, "search", "--root", root, "--type", "segment"))
	assert.Contains(t, out.String(), "doc.tt#s1\tsegment")

	a, out, _ = newTestApp()
	require.NoError(t, run(t, a, "search", "--root", root, "zucchini"))
	assert.Equal(t, "no matches\n", out.String())

	a, out, _ = newTestApp()
	require.NoError(t, run(t, a, "refs", "--root", root, "sec", "one"))
	assert.Contains(t, out.String(), "defined  doc.tt#s1\n")
	assert.Contains(t, out.String(), "used     doc.tt#s1/p1\n")

	a, out, _ = newTestApp()
	require.NoError(t, run(t, a, "refs", "--root", root, "any", "missing"))
	assert.Contains(t, out.String(), "missing is not defined")
}

func TestSourceName(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, "a/b.tt", sourceName(root, filepath.Join(root, "a", "b.tt")))
	assert.Equal(t, "elsewhere.tt", sourceName(filepath.Join(root, "sub"), "elsewhere.tt"))
}

func TestWithPassword(t *testing.T) {
	cases := []struct {
		dsn, password, want string
	}{
		{"postgres://bob@db/turnip", "s3cret", "postgres://bob:s3cret@db/turnip"},
		{"postgres://bob:kept@db/turnip", "s3cret", "postgres://bob:kept@db/turnip"},
		{"host=db user=bob", "s3cret", "host=db user=bob"},
		{"postgres://bob@db/turnip", "", "postgres://bob@db/turnip"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, withPassword(c.dsn, c.password), c.dsn)
	}
}

func TestLoadEnvFileNormalizesInts(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "env.yaml", "n: 4\nlist: [1, 2]\nnested:\n  k: 5\nname: x\n")
	vars, err := loadEnvFile(p)
	require.NoError(t, err)
	assert.Equal(t, int64(4), vars["n"])
	assert.Equal(t, []any{int64(1), int64(2)}, vars["list"])
	assert.Equal(t, map[string]any{"k": int64(5)}, vars["nested"])
	assert.Equal(t, "x", vars["name"])

	bad := writeFile(t, dir, "bad.yaml", "- just\n- a list\n")
	_, err = loadEnvFile(bad)
	assert.Error(t, err)
}

func TestConfigAndVersion(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv(config.EnvIndexDir, ".idx")

	a, out, _ := newTestApp()
	require.NoError(t, run(t, a, "config", "path"))
	assert.Equal(t, filepath.Join(xdg, "turnip", "config.yaml")+"\n", out.String())

	a, out, _ = newTestApp()
	require.NoError(t, run(t, a, "config", "show"))
	assert.Contains(t, out.String(), "max_include_depth: 16")
	assert.Contains(t, out.String(), "# index.dir_name overridden by "+config.EnvIndexDir)

	a, out, _ = newTestApp()
	require.NoError(t, run(t, a, "version"))
	assert.Contains(t, out.String(), "turnip ")
}
