// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command provincectl manages province CMS content over the JSON API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/olegiv/province-cms/internal/client"
)

const usage = `provincectl - Province CMS admin client

Usage:
  provincectl [options] <command> [arguments]

Commands:
  check                               Show the session state
  login                               Verify credentials
  list <resource> [key=value ...]     List records (page, per_page and filters)
  create <resource> key=value ...     Create a record
  update <resource> <id> key=value ...  Patch a record (-replace for a full update)
  delete <resource> <id>              Delete a record
  upload <file>                       Upload an image

Values are parsed as JSON when possible, so count=3 is a number and
title=Hello is a string.

Options:
`

var errUsage = errors.New("invalid usage")

type options struct {
	server   string
	username string
	password string
	replace  bool
}

func main() {
	_ = godotenv.Load()

	var opts options
	fs := flag.NewFlagSet("provincectl", flag.ContinueOnError)
	fs.StringVar(&opts.server, "server", envOr("PROVINCE_URL", "http://localhost:8080"), "Server base URL")
	fs.StringVar(&opts.username, "user", os.Getenv("PROVINCE_USER"), "Username to sign in with")
	fs.BoolVar(&opts.replace, "replace", false, "Send update as PUT (all fields)")
	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nThe password is read from PROVINCE_PASSWORD.\n")
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	opts.password = os.Getenv("PROVINCE_PASSWORD")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, fs.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			os.Exit(2)
		}
		_, _ = fmt.Fprintf(os.Stderr, "provincectl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	c, err := client.New(opts.server, client.WithOnUnauthenticated(func() {
		_, _ = fmt.Fprintln(os.Stderr, "provincectl: not signed in; set -user and PROVINCE_PASSWORD")
	}))
	if err != nil {
		return err
	}

	if cmd == "check" {
		s, err := c.Check(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, s)
	}

	if opts.username == "" || opts.password == "" {
		if cmd == "login" {
			return fmt.Errorf("login needs -user and PROVINCE_PASSWORD")
		}
	} else {
		u, err := c.Login(ctx, opts.username, opts.password)
		if err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
		if cmd == "login" {
			return printJSON(out, u)
		}
	}

	switch cmd {
	case "list":
		if len(args) < 1 {
			return errUsage
		}
		query, err := parseQuery(args[1:])
		if err != nil {
			return err
		}
		page, err := c.List(ctx, args[0], query)
		if err != nil {
			return err
		}
		return printJSON(out, page)

	case "create":
		if len(args) < 2 {
			return errUsage
		}
		fields, err := parseFields(args[1:])
		if err != nil {
			return err
		}
		id, err := c.Create(ctx, args[0], fields)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{"id": id})

	case "update":
		if len(args) < 3 {
			return errUsage
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		fields, err := parseFields(args[2:])
		if err != nil {
			return err
		}
		rec, err := c.Update(ctx, args[0], id, fields, opts.replace)
		if err != nil {
			return err
		}
		return printJSON(out, rec)

	case "delete":
		if len(args) != 2 {
			return errUsage
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := c.Delete(ctx, args[0], id); err != nil {
			return err
		}
		return printJSON(out, map[string]any{"deleted": id})

	case "upload":
		if len(args) != 1 {
			return errUsage
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		res, err := c.UploadImage(ctx, filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}

	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

// parseFields turns key=value arguments into a JSON body.
func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		fields[key] = v
	}
	return fields, nil
}

func parseQuery(args []string) (map[string][]string, error) {
	query := make(map[string][]string, len(args))
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		query[key] = append(query[key], val)
	}
	return query, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
