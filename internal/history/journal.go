// Package history keeps a local journal of training runs so the CLI can
// show past results without asking the backend.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("history: run not found")

// RunRecord is one journaled training run.
type RunRecord struct {
	ID            string
	ModelID       string
	DatasetID     string
	Epochs        int
	Status        string
	FinalLoss     float64
	FinalAccuracy float64
	TrainingTime  float64
	StartedAt     time.Time
	FinishedAt    time.Time
}

// ProgressRecord is one epoch tick observed during a run.
type ProgressRecord struct {
	RunID    string
	Epoch    int
	Loss     float64
	Accuracy float64
	At       time.Time
}

// Journal is the sqlite-backed run log.
type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	j := &Journal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS runs(
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		dataset_id TEXT,
		epochs INTEGER NOT NULL,
		status TEXT NOT NULL,
		final_loss REAL,
		final_accuracy REAL,
		training_time REAL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS progress(
		run_id TEXT NOT NULL,
		epoch INTEGER NOT NULL,
		loss REAL,
		accuracy REAL,
		at TIMESTAMP NOT NULL
	);`)
	return err
}

// StartRun opens a journal entry before the train command is sent.
func (j *Journal) StartRun(id, modelID, datasetID string, epochs int) error {
	_, err := j.db.Exec(`INSERT INTO runs(id, model_id, dataset_id, epochs, status, started_at)
		VALUES(?, ?, ?, ?, 'in_progress', ?)
		ON CONFLICT(id) DO NOTHING;`, id, modelID, datasetID, epochs, time.Now())
	return err
}

// RecordProgress appends one epoch tick.
func (j *Journal) RecordProgress(runID string, epoch int, loss, accuracy float64) error {
	_, err := j.db.Exec(`INSERT INTO progress(run_id, epoch, loss, accuracy, at)
		VALUES(?, ?, ?, ?, ?);`, runID, epoch, loss, accuracy, time.Now())
	return err
}

// FinishRun settles the entry with the terminal outcome.
func (j *Journal) FinishRun(runID, status string, finalLoss, finalAccuracy, trainingTime float64) error {
	res, err := j.db.Exec(`UPDATE runs
		SET status=?, final_loss=?, final_accuracy=?, training_time=?, finished_at=?
		WHERE id=?;`, status, finalLoss, finalAccuracy, trainingTime, time.Now(), runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun loads one journal entry.
func (j *Journal) GetRun(id string) (RunRecord, error) {
	var rec RunRecord
	var finished sql.NullTime
	var loss, accuracy, trainingTime sql.NullFloat64
	err := j.db.QueryRow(`SELECT id, model_id, dataset_id, epochs, status,
			final_loss, final_accuracy, training_time, started_at, finished_at
		FROM runs WHERE id=?;`, id).
		Scan(&rec.ID, &rec.ModelID, &rec.DatasetID, &rec.Epochs, &rec.Status,
			&loss, &accuracy, &trainingTime, &rec.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}
	rec.FinalLoss = loss.Float64
	rec.FinalAccuracy = accuracy.Float64
	rec.TrainingTime = trainingTime.Float64
	rec.FinishedAt = finished.Time
	return rec, nil
}

// RecentRuns lists the newest entries first.
func (j *Journal) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.Query(`SELECT id, model_id, dataset_id, epochs, status,
			final_loss, final_accuracy, training_time, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var finished sql.NullTime
		var loss, accuracy, trainingTime sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.ModelID, &rec.DatasetID, &rec.Epochs, &rec.Status,
			&loss, &accuracy, &trainingTime, &rec.StartedAt, &finished); err != nil {
			return nil, err
		}
		rec.FinalLoss = loss.Float64
		rec.FinalAccuracy = accuracy.Float64
		rec.TrainingTime = trainingTime.Float64
		rec.FinishedAt = finished.Time
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RunProgress lists the recorded epoch ticks of one run in order.
func (j *Journal) RunProgress(runID string) ([]ProgressRecord, error) {
	rows, err := j.db.Query(`SELECT run_id, epoch, loss, accuracy, at
		FROM progress WHERE run_id=? ORDER BY epoch;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProgressRecord
	for rows.Next() {
		var rec ProgressRecord
		if err := rows.Scan(&rec.RunID, &rec.Epoch, &rec.Loss, &rec.Accuracy, &rec.At); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
