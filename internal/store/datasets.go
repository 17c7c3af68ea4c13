package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Dataset statuses.
const (
	StatusUploaded = "Uploaded"
	StatusSaved    = "Saved"
)

// Dataset is an uploaded file persisted on disk.
type Dataset struct {
	ID          string
	UserID      string
	Filename    string
	StoragePath string
	UploadedAt  time.Time
	RowCount    int
	ColumnCount int
	Status      string
}

const datasetColumns = `id, user_id, filename, storage_path, uploaded_at, COALESCE(row_count, 0), COALESCE(column_count, 0), COALESCE(status, '')`

// CreateDataset inserts d.
func (s *Store) CreateDataset(ctx context.Context, d *Dataset) error {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	if d.Status == "" {
		d.Status = StatusUploaded
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, user_id, filename, storage_path, uploaded_at, row_count, column_count, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Filename, d.StoragePath, formatTime(d.UploadedAt), d.RowCount, d.ColumnCount, d.Status)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	return nil
}

// Dataset returns the dataset id owned by userID.
func (s *Store) Dataset(ctx context.Context, userID, id string) (*Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE id = ? AND user_id = ?`, id, userID)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	return d, nil
}

// Datasets lists the datasets of userID, newest first.
func (s *Store) Datasets(ctx context.Context, userID string) ([]*Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE user_id = ? ORDER BY uploaded_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()
	var out []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("list datasets: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetDatasetStatus updates the status of a dataset owned by userID.
func (s *Store) SetDatasetStatus(ctx context.Context, userID, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE datasets SET status = ? WHERE id = ? AND user_id = ?`, status, id, userID)
	if err != nil {
		return fmt.Errorf("update dataset status: %w", err)
	}
	return requireAffected(res)
}

// DeleteDataset removes a dataset and its analyses.
func (s *Store) DeleteDataset(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	return requireAffected(res)
}

// DeleteUserDatasets removes every dataset of userID and returns how many were removed.
func (s *Store) DeleteUserDatasets(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete datasets: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(sc scanner) (*Dataset, error) {
	var d Dataset
	var uploaded string
	if err := sc.Scan(&d.ID, &d.UserID, &d.Filename, &d.StoragePath, &uploaded, &d.RowCount, &d.ColumnCount, &d.Status); err != nil {
		return nil, err
	}
	d.UploadedAt = parseTime(uploaded)
	return &d, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
