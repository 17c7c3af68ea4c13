package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Analysis is a saved pairing of a dataset and its chart configuration.
type Analysis struct {
	ID        string
	DatasetID string
	UserID    string
	CreatedAt time.Time
	Summary   string
	// Insights holds the chart configuration as JSON.
	Insights string
	// Dataset is nil when the referenced row no longer exists.
	Dataset *Dataset
}

const analysisSelect = `
SELECT a.id, a.dataset_id, a.user_id, a.created_at, COALESCE(a.summary, ''), COALESCE(a.insights, ''),
       d.id, d.user_id, d.filename, d.storage_path, d.uploaded_at, d.row_count, d.column_count, d.status
FROM analysis_history a
LEFT JOIN datasets d ON d.id = a.dataset_id`

// CreateAnalysis inserts a.
func (s *Store) CreateAnalysis(ctx context.Context, a *Analysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_history (id, dataset_id, user_id, created_at, summary, insights) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.DatasetID, a.UserID, formatTime(a.CreatedAt), a.Summary, a.Insights)
	if err != nil {
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

// Analysis returns analysis id owned by userID with its dataset.
func (s *Store) Analysis(ctx context.Context, userID, id string) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx, analysisSelect+` WHERE a.id = ? AND a.user_id = ?`, id, userID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	return a, nil
}

// Analyses lists the analyses of userID, newest first.
func (s *Store) Analyses(ctx context.Context, userID string) ([]*Analysis, error) {
	rows, err := s.db.QueryContext(ctx, analysisSelect+` WHERE a.user_id = ? ORDER BY a.created_at DESC, a.rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()
	var out []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("list analyses: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAnalysisInsights replaces the stored chart configuration.
func (s *Store) UpdateAnalysisInsights(ctx context.Context, userID, id, insights string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE analysis_history SET insights = ? WHERE id = ? AND user_id = ?`, insights, id, userID)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	return requireAffected(res)
}

// DeleteAnalysis removes one analysis. The dataset is kept.
func (s *Store) DeleteAnalysis(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_history WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return requireAffected(res)
}

// DeleteUserAnalyses removes every analysis of userID and returns how many were removed.
func (s *Store) DeleteUserAnalyses(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_history WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete analyses: %w", err)
	}
	return res.RowsAffected()
}

func scanAnalysis(sc scanner) (*Analysis, error) {
	var a Analysis
	var created string
	var (
		dID, dUser, dName, dPath, dUploaded, dStatus sql.NullString
		dRows, dCols                                 sql.NullInt64
	)
	err := sc.Scan(&a.ID, &a.DatasetID, &a.UserID, &created, &a.Summary, &a.Insights,
		&dID, &dUser, &dName, &dPath, &dUploaded, &dRows, &dCols, &dStatus)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(created)
	if dID.Valid {
		a.Dataset = &Dataset{
			ID:          dID.String,
			UserID:      dUser.String,
			Filename:    dName.String,
			StoragePath: dPath.String,
			UploadedAt:  parseTime(dUploaded.String),
			RowCount:    int(dRows.Int64),
			ColumnCount: int(dCols.Int64),
			Status:      dStatus.String,
		}
	}
	return &a, nil
}
