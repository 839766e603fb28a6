/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Command turnip parses TurnipText documents, indexes them for search and
// publishes them to a shared Postgres mirror.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"turnip/internal/config"
	"turnip/internal/crash"
	applog "turnip/internal/log"
	"turnip/internal/storage"
	"turnip/internal/telemetry"
)

// cli defines the command-line interface using Kong.
type cli struct {
	Verbose bool `name:"verbose" short:"v" help:"Log at debug level"`

	Parse   ParseCmd   `cmd:"" help:"Parse a document and print its outline or JSON tree"`
	Index   IndexCmd   `cmd:"" help:"Parse a document and add it to the workspace index"`
	Search  SearchCmd  `cmd:"" help:"Full-text search over the workspace index"`
	Refs    RefsCmd    `cmd:"" help:"Show where an anchor is defined and used"`
	Publish PublishCmd `cmd:"" help:"Publish a document to the Postgres mirror"`
	Config  ConfigCmd  `cmd:"" help:"Inspect the user configuration"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// app carries what every command needs.
type app struct {
	cfg      config.AppConfig
	password string
	out      io.Writer
	errOut   io.Writer
	crash    *crash.Context
	log      *slog.Logger
}

func (a *app) timeout() time.Duration {
	if d, err := time.ParseDuration(a.cfg.Backend.EffectiveTimeout()); err == nil {
		return d
	}
	return 15 * time.Second
}

func main() {
	applog.Init(applog.FromEnv())
	cc := &crash.Context{}
	defer crash.Recover(cc)

	cfg, password, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
		cfg = config.Defaults()
	}
	var c cli
	parser := kong.Must(&c,
		kong.Name("turnip"),
		kong.Description("TurnipText document toolchain"),
		kong.UsageOnError(),
	)
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	level := cfg.Logging.Level
	if c.Verbose {
		level = "debug"
	}
	applog.Init(applog.Options{Level: level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	storage.UseIndexDir(cfg.Index.DirName)

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	telemetry.NewDefault(tcfg)

	a := &app{cfg: cfg, password: password, out: os.Stdout, errOut: os.Stderr, crash: cc, log: applog.WithComponent("cli")}
	a.log.Debug("start", slog.String("command", kctx.Command()))
	err = kctx.Run(a)

	fctx, cancel := context.WithTimeout(context.Background(), time.Second)
	telemetry.Flush(fctx)
	cancel()
	kctx.FatalIfErrorf(err)
}
