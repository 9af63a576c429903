// Package indexdb keeps a queryable SQLite index of generation runs next to
// the JSONL event log, which stays the source of truth.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/shariarpapon/everime-world-generator/internal/sim/master"
	"github.com/shariarpapon/everime-world-generator/internal/sim/tuning"
)

const queueSize = 4096

// Fixed-width timestamps keep text ordering chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteIndex keys rows by session as well as run id, since run ids restart
// with every process.
type SQLiteIndex struct {
	db      *sql.DB
	session string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEvents   atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	event    master.Event
	snapshot snapshotRow
}

type snapshotRow struct {
	RunID uint64
	Path  string
}

// RunRow is one generation run.
type RunRow struct {
	Session      string
	RunID        uint64
	Seed         string
	CombinedSeed int64
	State        string
	Started      string
	Completed    string
	Chunks       int
	Spawns       int
	Faults       int
	Digest       string
	ElapsedMS    int64
	SnapshotPath string
}

type FaultRow struct {
	Session string
	RunID   uint64
	Seq     int
	Kind    string
	Chunk   string
	Message string
	At      string
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropEventTotal    uint64
	DropSnapshotTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:      db,
		session: uuid.NewString(),
		ch:      make(chan req, queueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			session TEXT NOT NULL,
			run_id INTEGER NOT NULL,
			seed TEXT NOT NULL,
			combined_seed INTEGER NOT NULL,
			state TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL DEFAULT '',
			chunks INTEGER NOT NULL DEFAULT 0,
			spawns INTEGER NOT NULL DEFAULT 0,
			faults INTEGER NOT NULL DEFAULT 0,
			digest TEXT NOT NULL DEFAULT '',
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			snapshot_path TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session, run_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS faults (
			session TEXT NOT NULL,
			run_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			chunk TEXT NOT NULL,
			message TEXT NOT NULL,
			at TEXT NOT NULL,
			PRIMARY KEY (session, run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_faults_kind ON faults(kind);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteEvent indexes master events. Runs start on generate_start, close on
// complete or cleared; every fault gets a row. Other values are ignored.
func (s *SQLiteIndex) WriteEvent(v any) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	e, ok := v.(master.Event)
	if !ok {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEvent, event: e}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropEvents.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(runID uint64, path string) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: snapshotRow{RunID: runID, Path: path}}:
	default:
		s.dropSnapshot.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropEventTotal:    s.dropEvents.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// UpsertTuning stores the tuning actually applied, as canonical JSON.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Session() string { return s.session }

// Runs returns the latest runs across sessions, newest first.
func (s *SQLiteIndex) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT session,run_id,seed,combined_seed,state,started_at,completed_at,chunks,spawns,faults,digest,elapsed_ms,snapshot_path
		FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var id int64
		if err := rows.Scan(&r.Session, &id, &r.Seed, &r.CombinedSeed, &r.State, &r.Started, &r.Completed,
			&r.Chunks, &r.Spawns, &r.Faults, &r.Digest, &r.ElapsedMS, &r.SnapshotPath); err != nil {
			return nil, err
		}
		r.RunID = uint64(id)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Faults(ctx context.Context, session string, runID uint64) ([]FaultRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session,run_id,seq,kind,chunk,message,at FROM faults WHERE session=? AND run_id=? ORDER BY seq`, session, int64(runID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FaultRow
	for rows.Next() {
		var f FaultRow
		var id int64
		if err := rows.Scan(&f.Session, &id, &f.Seq, &f.Kind, &f.Chunk, &f.Message, &f.At); err != nil {
			return nil, err
		}
		f.RunID = uint64(id)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(session,run_id,seed,combined_seed,state,started_at) VALUES(?,?,?,?,?,?)`)
	completeRun, _ := s.db.Prepare(`UPDATE runs SET state=?,completed_at=?,chunks=?,spawns=?,faults=?,digest=?,elapsed_ms=? WHERE session=? AND run_id=?`)
	clearRun, _ := s.db.Prepare(`UPDATE runs SET state=? WHERE session=? AND run_id=? AND state=?`)
	insertFault, _ := s.db.Prepare(`INSERT OR REPLACE INTO faults(session,run_id,seq,kind,chunk,message,at) VALUES(?,?,?,?,?,?,?)`)
	setSnapshot, _ := s.db.Prepare(`UPDATE runs SET snapshot_path=? WHERE session=? AND run_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, completeRun, clearRun, insertFault, setSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	faultSeq := map[uint64]int{}

	apply := func(tx *sql.Tx, r req) error {
		switch r.kind {
		case reqSnapshot:
			_, err := tx.Stmt(setSnapshot).Exec(r.snapshot.Path, s.session, int64(r.snapshot.RunID))
			return err
		case reqEvent:
			e := r.event
			at := e.Time.UTC().Format(timeLayout)
			switch e.Kind {
			case master.EventGenerateStart:
				_, err := tx.Stmt(insertRun).Exec(s.session, int64(e.RunID), e.Seed, e.CombinedSeed, "running", at)
				return err
			case master.EventComplete:
				_, err := tx.Stmt(completeRun).Exec("complete", at, e.Chunks, e.Spawns, e.Faults, e.Digest, e.ElapsedMS, s.session, int64(e.RunID))
				return err
			case master.EventCleared:
				_, err := tx.Stmt(clearRun).Exec("cleared", s.session, int64(e.RunID), "running")
				return err
			case master.EventFault:
				faultSeq[e.RunID]++
				_, err := tx.Stmt(insertFault).Exec(s.session, int64(e.RunID), faultSeq[e.RunID], e.FaultKind, e.Chunk, e.Message, at)
				return err
			}
		}
		return nil
	}

	for r := range s.ch {
		if insertRun == nil || completeRun == nil || clearRun == nil || insertFault == nil || setSnapshot == nil {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ok := apply(tx, r) == nil
		// Batch whatever is already queued into the same transaction.
	batch:
		for ok {
			select {
			case next, more := <-s.ch:
				if !more {
					break batch
				}
				ok = apply(tx, next) == nil
			default:
				break batch
			}
		}
		if ok {
			_ = tx.Commit()
		} else {
			_ = tx.Rollback()
		}
	}
}
