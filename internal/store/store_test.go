package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, id, email string) *User {
	t.Helper()
	u := &User{ID: id, Name: "Test " + id, Email: email, PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestParseDatabaseURL(t *testing.T) {
	cases := map[string]string{
		"":                          "vizion.db",
		"sqlite:///vizion.db":       "vizion.db",
		"sqlite:////var/lib/v.db":   "/var/lib/v.db",
		"sqlite://":                 ":memory:",
		":memory:":                  ":memory:",
		"file:test.db?cache=shared": "file:test.db?cache=shared",
		"data/app.db":               "data/app.db",
	}
	for in, want := range cases {
		got, err := ParseDatabaseURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDatabaseURL("postgres://localhost/vizion")
	assert.Error(t, err)
}

func TestOpen_CreatesFileAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "v.db")
	s, err := Open(context.Background(), "sqlite:///"+path, nil)
	require.NoError(t, err)
	seedUser(t, s, "u1", "a@example.com")
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer s.Close()
	u, err := s.UserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestUsers(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")

	err := s.CreateUser(ctx, &User{ID: "u2", Name: "Other", Email: "a@example.com", PasswordHash: "x"})
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

	u, err := s.UserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = s.UserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatasetsScopedToOwner(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	seedUser(t, s, "u2", "b@example.com")

	d := &Dataset{ID: "d1", UserID: "u1", Filename: "x.csv", StoragePath: "/tmp/x.csv", RowCount: 3, ColumnCount: 2}
	require.NoError(t, s.CreateDataset(ctx, d))
	assert.Equal(t, StatusUploaded, d.Status)

	got, err := s.Dataset(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.RowCount)
	assert.Equal(t, StatusUploaded, got.Status)

	_, err = s.Dataset(ctx, "u2", "d1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetDatasetStatus(ctx, "u1", "d1", StatusSaved))
	got, err = s.Dataset(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, got.Status)
	assert.ErrorIs(t, s.SetDatasetStatus(ctx, "u2", "d1", StatusSaved), ErrNotFound)

	list, err := s.Datasets(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAnalyses(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	require.NoError(t, s.CreateDataset(ctx, &Dataset{ID: "d1", UserID: "u1", Filename: "x.csv", StoragePath: "p"}))
	require.NoError(t, s.CreateDataset(ctx, &Dataset{ID: "d2", UserID: "u1", Filename: "y.csv", StoragePath: "q"}))

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateAnalysis(ctx, &Analysis{ID: "a1", DatasetID: "d1", UserID: "u1", CreatedAt: base, Summary: "first", Insights: "{}"}))
	require.NoError(t, s.CreateAnalysis(ctx, &Analysis{ID: "a2", DatasetID: "d2", UserID: "u1", CreatedAt: base.Add(time.Minute), Summary: "second"}))

	list, err := s.Analyses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID, "newest first")
	require.NotNil(t, list[0].Dataset)
	assert.Equal(t, "y.csv", list[0].Dataset.Filename)
	assert.True(t, list[1].CreatedAt.Equal(base))

	require.NoError(t, s.UpdateAnalysisInsights(ctx, "u1", "a1", `{"quick_plot":{}}`))
	a, err := s.Analysis(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, `{"quick_plot":{}}`, a.Insights)
	_, err = s.Analysis(ctx, "u2", "a1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteDataset(ctx, "u1", "d2"))
	list, err = s.Analyses(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "deleting a dataset removes its analyses")

	require.NoError(t, s.DeleteAnalysis(ctx, "u1", "a1"))
	assert.ErrorIs(t, s.DeleteAnalysis(ctx, "u1", "a1"), ErrNotFound)
	_, err = s.Dataset(ctx, "u1", "d1")
	assert.NoError(t, err, "deleting an analysis keeps its dataset")

	n, err := s.DeleteUserDatasets(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSessions(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "a@example.com")
	now := time.Now()

	require.NoError(t, s.CreateSession(ctx, &Session{Token: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateSession(ctx, &Session{Token: "old", UserID: "u1", ExpiresAt: now.Add(-time.Hour)}))

	sess, err := s.Session(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	_, err = s.Session(ctx, "old", now)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.PurgeExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.DeleteSession(ctx, "live"))
	_, err = s.Session(ctx, "live", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrations_AddMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.db.ExecContext(ctx, `DROP TABLE analysis_history`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `CREATE TABLE analysis_history (id TEXT PRIMARY KEY, dataset_id TEXT, user_id TEXT, created_at TEXT, summary TEXT)`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.columnExists(ctx, "analysis_history", "insights")
	require.NoError(t, err)
	assert.True(t, ok)
}
