// Package history keeps finished runs in SQLite so they can be listed and
// replayed.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/session"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("run not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER NOT NULL PRIMARY KEY,
	run_id     TEXT NOT NULL UNIQUE,
	sum        TEXT NOT NULL,
	difficulty TEXT NOT NULL DEFAULT '',
	finish     TEXT NOT NULL DEFAULT '',
	score      INTEGER NOT NULL DEFAULT 0,
	max_score  INTEGER NOT NULL DEFAULT 0,
	max_combo  INTEGER NOT NULL DEFAULT 0,
	misses     INTEGER NOT NULL DEFAULT 0,
	accuracy   REAL NOT NULL DEFAULT 0,
	grade      TEXT NOT NULL DEFAULT '',
	rate       REAL NOT NULL DEFAULT 1,
	start_ms   INTEGER NOT NULL DEFAULT 0,
	inputs     BLOB,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_sum ON runs(sum);
`

const columns = `id, run_id, sum, difficulty, finish, score, max_score, max_combo, misses, accuracy, grade, rate, start_ms, inputs, created_at`

// Record is one stored run.
type Record struct {
	ID         int64
	RunID      uuid.UUID
	Sum        string
	Difficulty string
	Finish     string
	Score      int64
	MaxScore   int64
	MaxCombo   int
	Misses     int
	Accuracy   float64
	Grade      string
	Rate       float64
	StartMs    int64
	Inputs     []game.Input
	CreatedAt  time.Time
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if nil == logger {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if nil != err {
		return nil, fmt.Errorf("unable to open history %s: %w", path, err)
	}
	if err := db.Ping(); nil != err {
		db.Close()
		return nil, fmt.Errorf("unable to open history %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); nil != err {
		db.Close()
		return nil, fmt.Errorf("unable to create history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Sum identifies a chart by its notes, so an edited chart gets its own
// history.
func Sum(c *game.Chart) string {
	h := sha256.New()
	h.Write([]byte(c.Difficulty.Name))
	var buf [8]byte
	for _, n := range c.Notes {
		for _, v := range []int64{int64(n.Lane), int64(n.Type), n.Ms, n.EndMs} {
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			h.Write(buf[:])
		}
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Save stores a finished run of chart played at rate.
func (s *Store) Save(ctx context.Context, c *game.Chart, res *session.Result, rate float64) (int64, error) {
	data, err := json.Marshal(compactInputs(res.Inputs))
	if nil != err {
		return 0, fmt.Errorf("unable to marshal inputs: %w", err)
	}
	r, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, sum, difficulty, finish, score, max_score, max_combo, misses, accuracy, grade, rate, start_ms, inputs)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID.String(), Sum(c), res.Difficulty.Name, res.Finish.String(),
		res.Score, res.MaxScore, res.MaxCombo, res.Misses, res.Accuracy, res.Grade,
		rate, res.StartMs, data,
	)
	if nil != err {
		return 0, fmt.Errorf("unable to save run: %w", err)
	}
	id, err := r.LastInsertId()
	if nil != err {
		return 0, fmt.Errorf("unable to save run: %w", err)
	}
	s.logger.Info("run saved",
		slog.Int64("id", id),
		slog.String("run", res.RunID.String()),
		slog.Int64("score", res.Score),
		slog.String("grade", res.Grade))
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Record, error) {
	var rec Record
	var runID string
	var data []byte
	if err := row.Scan(&rec.ID, &runID, &rec.Sum, &rec.Difficulty, &rec.Finish,
		&rec.Score, &rec.MaxScore, &rec.MaxCombo, &rec.Misses, &rec.Accuracy, &rec.Grade,
		&rec.Rate, &rec.StartMs, &data, &rec.CreatedAt); nil != err {
		return rec, err
	}
	id, err := uuid.Parse(runID)
	if nil != err {
		return rec, fmt.Errorf("unable to parse run id %q: %w", runID, err)
	}
	rec.RunID = id
	var ins []LaneInputs
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ins); nil != err {
			return rec, fmt.Errorf("unable to unmarshal inputs of run %d: %w", rec.ID, err)
		}
	}
	rec.Inputs = uncompactInputs(ins)
	return rec, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if nil != err {
		return nil, fmt.Errorf("unable to load runs: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scan(rows)
		if nil != err {
			s.logger.Warn("skipping unreadable run", slog.String("error", err.Error()))
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); nil != err {
		return nil, fmt.Errorf("unable to load runs: %w", err)
	}
	return records, nil
}

// Load lists the runs of chart, best first.
func (s *Store) Load(ctx context.Context, c *game.Chart) ([]Record, error) {
	return s.query(ctx, `SELECT `+columns+` FROM runs WHERE sum = ? ORDER BY score DESC, id ASC`, Sum(c))
}

// Recent lists the latest runs of any chart.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	return s.query(ctx, `SELECT `+columns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
}

func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	rec, err := scan(s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if nil != err {
		return rec, fmt.Errorf("unable to load run %d: %w", id, err)
	}
	return rec, nil
}

// Replay plays a stored run against chart again. The chart must be the one
// the run was recorded on.
func Replay(cfg *config.Config, c *game.Chart, rec Record) (*session.Result, error) {
	if sum := Sum(c); sum != rec.Sum {
		return nil, fmt.Errorf("unable to replay run %d: chart changed since it was played", rec.ID)
	}
	return session.Replay(cfg, c, rec.StartMs, rec.Inputs), nil
}
