package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shariarpapon/everime-world-generator/internal/persistence/indexdb"
)

func openIndex(dataDir, dbPath string) *indexdb.SQLiteIndex {
	path := strings.TrimSpace(dbPath)
	if path == "" {
		path = filepath.Join(dataDir, "index", "runs.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return idx
}

func runsCmd(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	idx := openIndex(*dataDir, *dbPath)
	defer idx.Close()

	runs, err := idx.Runs(context.Background(), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range runs {
		_ = enc.Encode(r)
	}
}

func faultsCmd(args []string) {
	fs := flag.NewFlagSet("faults", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	session := fs.String("session", "", "server session (required)")
	run := fs.Uint64("run", 0, "run id (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*session) == "" || *run == 0 {
		fmt.Fprintln(os.Stderr, "missing -session or -run (see: admin runs)")
		os.Exit(2)
	}

	idx := openIndex(*dataDir, *dbPath)
	defer idx.Close()

	faults, err := idx.Faults(context.Background(), *session, *run)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, f := range faults {
		_ = enc.Encode(f)
	}
}
