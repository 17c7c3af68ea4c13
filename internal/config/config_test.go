package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	chdir(t, dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8501", c.ListenAddr)
	assert.Equal(t, "sqlite:///vizion.db", c.DatabaseURL)
	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, 168*time.Hour, c.SessionTTL)
	assert.Equal(t, int64(200<<20), c.MaxUploadBytes())
	opt := c.AnalysisOptions()
	assert.Equal(t, '.', opt.DecimalSeparator)
	assert.Equal(t, rune(0), opt.Delimiter)
}

func TestLoad_EnvAndFile(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "vizion.yaml")
	require.NoError(t, os.WriteFile(file, []byte("listen_addr: 0.0.0.0:9000\nsession_ttl: 2h\ndelimiter: ';'\n"), 0o644))
	t.Setenv("VIZION_DATA_DIR", "/srv/vizion")
	t.Setenv("DATABASE_URL", "sqlite:////srv/vizion.db")

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", c.ListenAddr)
	assert.Equal(t, 2*time.Hour, c.SessionTTL)
	assert.Equal(t, "/srv/vizion", c.DataDir)
	assert.Equal(t, "sqlite:////srv/vizion.db", c.DatabaseURL)
	assert.Equal(t, ';', c.AnalysisOptions().Delimiter)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_URL=sqlite:///from-dotenv.db\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///from-dotenv.db", c.DatabaseURL)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("max_upload_mb: 0\n"), 0o644))
	_, err := Load(file)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Set("chart_width", "1200"))
	require.NoError(t, c.Set("session_ttl", "30m"))
	require.NoError(t, c.Set("delimiter", `\t`))
	require.NoError(t, Save(c, ""))
	_, err = os.Stat(filepath.Join(dir, ".vizion", "config.yaml"))
	require.NoError(t, err)

	back, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1200, back.ChartWidth)
	assert.Equal(t, 30*time.Minute, back.SessionTTL)
	assert.Equal(t, '\t', back.AnalysisOptions().Delimiter)
}

func TestSetAndGet(t *testing.T) {
	c := &Global{MaxUploadMB: 1, SessionTTL: time.Hour}
	require.NoError(t, c.Set("cookie_secure", "true"))
	v, err := c.Get("cookie_secure")
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	assert.Error(t, c.Set("max_upload_mb", "zero"))
	assert.Error(t, c.Set("decimal_separator", ",,"))
	assert.Error(t, c.Set("nope", "1"))
	_, err = c.Get("nope")
	assert.Error(t, err)
	for _, k := range Keys {
		_, err := c.Get(k)
		assert.NoError(t, err, k)
	}
}
