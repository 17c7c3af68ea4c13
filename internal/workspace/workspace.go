// Package workspace ties uploaded files, the store and chart configurations
// into the per-user upload, save and history flows.
package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vynguyen175/vizion/internal/analysis"
	"github.com/vynguyen175/vizion/internal/charts"
	"github.com/vynguyen175/vizion/internal/store"
	"github.com/vynguyen175/vizion/internal/utils"
)

var (
	// ErrDatasetMissing is returned when a saved analysis points at a dataset
	// whose row or file no longer exists.
	ErrDatasetMissing = errors.New("saved dataset not found for this analysis")
	// ErrUnsupportedFile is returned for uploads that are neither CSV nor XLSX.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrAlreadySaved is returned when discarding a dataset that belongs to an analysis.
	ErrAlreadySaved = errors.New("dataset already saved")
)

// storedFile is the name of the normalised CSV kept for every dataset.
const storedFile = "original.csv"

// Loaded is a dataset row together with its parsed contents.
type Loaded struct {
	Dataset *store.Dataset
	Frame   *analysis.Frame
}

// Opened is a saved analysis ready to be displayed or edited.
type Opened struct {
	Analysis *store.Analysis
	Frame    *analysis.Frame
	Config   charts.VizConfig
}

// Service implements the upload, save and history flows for one data directory.
type Service struct {
	store   *store.Store
	dataDir string
	opt     analysis.Options
	log     *zap.Logger
	now     func() time.Time
}

// New returns a Service storing files under dataDir. opt controls how uploads
// are parsed; stored files are always read back with canonical CSV settings.
func New(st *store.Store, dataDir string, opt analysis.Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, dataDir: dataDir, opt: opt, log: log, now: time.Now}
}

// DataDir returns the directory holding dataset files.
func (s *Service) DataDir() string { return s.dataDir }

// Message maps workspace errors to the text shown to users.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrDatasetMissing):
		return "Saved dataset not found for this analysis."
	case errors.Is(err, ErrUnsupportedFile):
		return "Please upload a CSV or XLSX file."
	case errors.Is(err, ErrAlreadySaved):
		return "Saved datasets are removed through their analysis."
	case errors.Is(err, store.ErrNotFound):
		return "Not found."
	case err != nil:
		return fmt.Sprintf("Error reading file: %v", err)
	}
	return ""
}

// Parse reads an upload into a frame, choosing the reader by file extension.
func Parse(filename string, r io.Reader, opt analysis.Options) (*analysis.Frame, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", ".tsv", "":
		return analysis.ReadCSV(r, filename, opt)
	case ".xlsx":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return analysis.ReadXLSX(bytes.NewReader(data), int64(len(data)), filename, "", 0, opt)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(filename))
	}
}

// Upload parses r, writes the normalised CSV to disk and records an
// unsaved dataset for userID.
func (s *Service) Upload(ctx context.Context, userID, filename string, r io.Reader) (*Loaded, error) {
	filename = utils.BaseName(filename)
	f, err := Parse(filename, r, s.opt)
	if err != nil {
		return nil, err
	}
	f.Name = filename
	return s.UploadFrame(ctx, userID, f)
}

// UploadFrame stores an already parsed frame as an unsaved dataset named
// after f.Name.
func (s *Service) UploadFrame(ctx context.Context, userID string, f *analysis.Frame) (*Loaded, error) {
	filename := utils.BaseName(f.Name)
	id := uuid.NewString()
	path := filepath.Join(s.dataDir, id, storedFile)
	if err := utils.SafeWrite(path, f.WriteCSV); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	d := &store.Dataset{
		ID:          id,
		UserID:      userID,
		Filename:    filename,
		StoragePath: path,
		UploadedAt:  s.now(),
		RowCount:    f.Len(),
		ColumnCount: f.NumCols(),
		Status:      store.StatusUploaded,
	}
	if err := s.store.CreateDataset(ctx, d); err != nil {
		_ = os.RemoveAll(filepath.Dir(path))
		return nil, err
	}
	s.log.Info("dataset uploaded",
		zap.String("user_id", userID),
		zap.String("dataset_id", id),
		zap.String("filename", filename),
		zap.Int("rows", d.RowCount),
		zap.Int("columns", d.ColumnCount))
	return &Loaded{Dataset: d, Frame: f}, nil
}

// Dataset loads one of userID's datasets with its contents.
func (s *Service) Dataset(ctx context.Context, userID, id string) (*Loaded, error) {
	d, err := s.store.Dataset(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	f, err := s.load(d)
	if err != nil {
		return nil, err
	}
	return &Loaded{Dataset: d, Frame: f}, nil
}

// Datasets lists userID's datasets, newest first.
func (s *Service) Datasets(ctx context.Context, userID string) ([]*store.Dataset, error) {
	return s.store.Datasets(ctx, userID)
}

// DiscardUpload removes a dataset that was never saved into an analysis.
func (s *Service) DiscardUpload(ctx context.Context, userID, id string) error {
	d, err := s.store.Dataset(ctx, userID, id)
	if err != nil {
		return err
	}
	if d.Status == store.StatusSaved {
		return fmt.Errorf("discard dataset %s: %w", id, ErrAlreadySaved)
	}
	if err := s.store.DeleteDataset(ctx, userID, id); err != nil {
		return err
	}
	s.removeFiles(d)
	return nil
}

// SaveAnalysis marks the dataset as saved and records an analysis holding cfg.
func (s *Service) SaveAnalysis(ctx context.Context, userID, datasetID string, cfg charts.VizConfig) (*store.Analysis, error) {
	ld, err := s.Dataset(ctx, userID, datasetID)
	if err != nil {
		return nil, err
	}
	raw, err := cfg.Restore(ld.Frame).JSON()
	if err != nil {
		return nil, err
	}
	if err := s.store.SetDatasetStatus(ctx, userID, datasetID, store.StatusSaved); err != nil {
		return nil, err
	}
	ld.Dataset.Status = store.StatusSaved
	a := &store.Analysis{
		ID:        uuid.NewString(),
		DatasetID: datasetID,
		UserID:    userID,
		CreatedAt: s.now(),
		Summary:   Summary(ld.Dataset.Filename, ld.Frame),
		Insights:  string(raw),
		Dataset:   ld.Dataset,
	}
	if err := s.store.CreateAnalysis(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("analysis saved",
		zap.String("user_id", userID),
		zap.String("analysis_id", a.ID),
		zap.String("dataset_id", datasetID))
	return a, nil
}

// Summary is the one-line description stored with a saved analysis.
func Summary(filename string, f *analysis.Frame) string {
	return fmt.Sprintf("Analyzed '%s' with %d rows and %d columns.", filename, f.Len(), f.NumCols())
}

// History lists userID's saved analyses, newest first. Entries whose dataset
// row or file has disappeared are deleted and left out.
func (s *Service) History(ctx context.Context, userID string) ([]*store.Analysis, error) {
	all, err := s.store.Analyses(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.Dataset != nil && utils.FileExists(a.Dataset.StoragePath) {
			out = append(out, a)
			continue
		}
		if err := s.store.DeleteAnalysis(ctx, userID, a.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		s.log.Warn("pruned analysis with missing dataset",
			zap.String("user_id", userID),
			zap.String("analysis_id", a.ID),
			zap.String("dataset_id", a.DatasetID))
	}
	return out, nil
}

// OpenAnalysis loads a saved analysis, its dataset and its restored chart configuration.
func (s *Service) OpenAnalysis(ctx context.Context, userID, id string) (*Opened, error) {
	a, err := s.store.Analysis(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if a.Dataset == nil {
		return nil, ErrDatasetMissing
	}
	f, err := s.load(a.Dataset)
	if err != nil {
		return nil, err
	}
	cfg, err := charts.ParseConfig([]byte(a.Insights))
	if err != nil {
		s.log.Warn("discarding unreadable chart config",
			zap.String("analysis_id", a.ID), zap.Error(err))
		cfg = charts.VizConfig{}
	}
	return &Opened{Analysis: a, Frame: f, Config: cfg.Restore(f)}, nil
}

// UpdateAnalysis replaces the chart configuration of a saved analysis.
func (s *Service) UpdateAnalysis(ctx context.Context, userID, id string, cfg charts.VizConfig) (*Opened, error) {
	op, err := s.OpenAnalysis(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	op.Config = cfg.Restore(op.Frame)
	raw, err := op.Config.JSON()
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateAnalysisInsights(ctx, userID, id, string(raw)); err != nil {
		return nil, err
	}
	op.Analysis.Insights = string(raw)
	return op, nil
}

// DeleteAnalysis removes one saved analysis. Its dataset is kept.
func (s *Service) DeleteAnalysis(ctx context.Context, userID, id string) error {
	return s.store.DeleteAnalysis(ctx, userID, id)
}

// ClearHistory deletes every analysis and dataset of userID along with the
// dataset files. It returns the number of analyses removed.
func (s *Service) ClearHistory(ctx context.Context, userID string) (int64, error) {
	datasets, err := s.store.Datasets(ctx, userID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.DeleteUserAnalyses(ctx, userID)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.DeleteUserDatasets(ctx, userID); err != nil {
		return n, err
	}
	for _, d := range datasets {
		s.removeFiles(d)
	}
	s.log.Info("history cleared",
		zap.String("user_id", userID),
		zap.Int64("analyses", n),
		zap.Int("datasets", len(datasets)))
	return n, nil
}

func (s *Service) load(d *store.Dataset) (*analysis.Frame, error) {
	fh, err := os.Open(d.StoragePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrDatasetMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer fh.Close()
	f, err := analysis.ReadCSV(fh, d.Filename, storedOptions(s.opt))
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", d.ID, err)
	}
	return f, nil
}

// storedOptions reads files written by Frame.WriteCSV: comma separated with '.' decimals.
func storedOptions(opt analysis.Options) analysis.Options {
	opt.Delimiter = ','
	opt.DecimalSeparator = '.'
	opt.ThousandsSeparator = 0
	opt.MaxRows = 0
	return opt
}

// removeFiles deletes a dataset directory, but only inside the data directory.
func (s *Service) removeFiles(d *store.Dataset) {
	dir := filepath.Dir(d.StoragePath)
	if !utils.IsWithin(s.dataDir, dir) {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		s.log.Warn("remove dataset files", zap.String("dataset_id", d.ID), zap.Error(err))
	}
}
