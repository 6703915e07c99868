package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/vascular/pkg/report"
	"github.com/mchmarny/vascular/pkg/table"
)

const (
	DefaultRunLimit = 20

	insertRunSQL = `INSERT INTO run (id, created_at, file_name, model_kind, row_count, accuracy, warning_count, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectRunSQL = `SELECT id, created_at, file_name, model_kind, row_count, accuracy, warning_count, body
		FROM run WHERE id = ?`

	listRunsSQL = `SELECT id, created_at, file_name, model_kind, row_count, accuracy, warning_count
		FROM run ORDER BY created_at DESC, id LIMIT ?`

	deleteRunSQL = `DELETE FROM run WHERE id = ?`
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	FileName  string    `json:"file_name" yaml:"file_name"`
	ModelKind string    `json:"model_kind" yaml:"model_kind"`
	Rows      int       `json:"rows" yaml:"rows"`
	Accuracy  *float64  `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	Warnings  int       `json:"warnings" yaml:"warnings"`
}

// Run is one scored upload: its preview, predictions, metrics and warnings.
type Run struct {
	RunSummary `yaml:",inline"`
	Preview    *table.Table   `json:"preview,omitempty" yaml:"preview,omitempty"`
	Result     *report.Result `json:"result" yaml:"result"`
}

type runBody struct {
	Preview *table.Table   `json:"preview,omitempty"`
	Result  *report.Result `json:"result"`
}

// NewRun creates a run with a new id for the scored result of fileName.
func NewRun(fileName, modelKind string, preview *table.Table, r *report.Result) *Run {
	run := &Run{
		RunSummary: RunSummary{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
			FileName:  fileName,
			ModelKind: modelKind,
		},
		Preview: preview,
		Result:  r,
	}
	if r != nil {
		if r.Batch != nil {
			run.Rows = r.Batch.Len()
		}
		if r.Summary != nil {
			v := r.Summary.Accuracy
			run.Accuracy = &v
		}
		run.Warnings = len(r.Warnings)
	}
	return run
}

// SaveRun stores r.
func SaveRun(db *sql.DB, r *Run) error {
	if db == nil {
		return errDBNotInitialized
	}
	if r == nil || r.ID == "" || r.Result == nil {
		return errors.New("run with id and result required")
	}

	body, err := json.Marshal(&runBody{Preview: r.Preview, Result: r.Result})
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", r.ID, err)
	}

	var accuracy sql.NullFloat64
	if r.Accuracy != nil {
		accuracy = sql.NullFloat64{Float64: *r.Accuracy, Valid: true}
	}

	_, err = db.Exec(rebind(db, insertRunSQL),
		r.ID, r.CreatedAt.UnixMilli(), r.FileName, r.ModelKind, r.Rows, accuracy, r.Warnings, string(body))
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner, extra ...any) (*RunSummary, error) {
	var (
		s        RunSummary
		created  int64
		accuracy sql.NullFloat64
	)
	dest := append([]any{&s.ID, &created, &s.FileName, &s.ModelKind, &s.Rows, &accuracy, &s.Warnings}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.CreatedAt = time.UnixMilli(created).UTC()
	if accuracy.Valid {
		v := accuracy.Float64
		s.Accuracy = &v
	}
	return &s, nil
}

// GetRun returns the run with the given id.
func GetRun(db *sql.DB, id string) (*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var body string
	s, err := scanSummary(db.QueryRow(rebind(db, selectRunSQL), id), &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("selecting run %s: %w", id, err)
	}

	var b runBody
	if err := json.Unmarshal([]byte(body), &b); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", id, err)
	}

	return &Run{RunSummary: *s, Preview: b.Preview, Result: b.Result}, nil
}

// ListRuns returns up to limit most recent runs, newest first.
func ListRuns(db *sql.DB, limit int) ([]*RunSummary, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	rows, err := db.Query(rebind(db, listRunsSQL), limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	list := make([]*RunSummary, 0)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return list, nil
}

// DeleteRun removes the run with the given id.
func DeleteRun(db *sql.DB, id string) error {
	if db == nil {
		return errDBNotInitialized
	}

	res, err := db.Exec(rebind(db, deleteRunSQL), id)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// DeleteAllRuns removes every stored run and returns how many were deleted.
func DeleteAllRuns(db *sql.DB) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}

	res, err := db.Exec("DELETE FROM run")
	if err != nil {
		return 0, fmt.Errorf("deleting runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking deleted runs: %w", err)
	}
	return n, nil
}
