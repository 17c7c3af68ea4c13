package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vynguyen175/vizion/internal/analysis"
	"github.com/vynguyen175/vizion/internal/auth"
	"github.com/vynguyen175/vizion/internal/charts"
	"github.com/vynguyen175/vizion/internal/store"
	"github.com/vynguyen175/vizion/internal/workspace"
)

const salesCSV = "region,sales,units\nNorth,10.5,3\nSouth,,4\nNorth,7,5\nNorth,7,5\n"

type harness struct {
	t   *testing.T
	srv *httptest.Server
	ws  *workspace.Service
	st  *store.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, Options{PreviewRows: 5})
}

func newHarnessWith(t *testing.T, opt Options) *harness {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	a := auth.New(st, nil, auth.WithBcryptCost(bcrypt.MinCost))
	ws := workspace.New(st, filepath.Join(t.TempDir(), "data"), analysis.DefaultOptions(), nil)
	s, err := New(a, ws, st, nil, opt)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, ws: ws, st: st}
}

// client returns a cookie-keeping client that does not follow redirects.
func (h *harness) client() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) get(c *http.Client, path string) (*http.Response, string) {
	h.t.Helper()
	resp, err := c.Get(h.srv.URL + path)
	require.NoError(h.t, err)
	return resp, readBody(h.t, resp)
}

func (h *harness) post(c *http.Client, path string, form url.Values) (*http.Response, string) {
	h.t.Helper()
	resp, err := c.PostForm(h.srv.URL+path, form)
	require.NoError(h.t, err)
	return resp, readBody(h.t, resp)
}

func (h *harness) upload(c *http.Client, filename, content string) (*http.Response, string) {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(h.t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())
	resp, err := c.Post(h.srv.URL+"/uploads", mw.FormDataContentType(), &buf)
	require.NoError(h.t, err)
	return resp, readBody(h.t, resp)
}

// signIn registers and logs in a fresh account.
func (h *harness) signIn(email string) (*http.Client, *store.User) {
	h.t.Helper()
	c := h.client()
	resp, _ := h.post(c, "/register", url.Values{"name": {"Test"}, "email": {email}, "password": {"pw"}})
	require.Equal(h.t, http.StatusSeeOther, resp.StatusCode)
	resp, _ = h.post(c, "/login", url.Values{"email": {email}, "password": {"pw"}})
	require.Equal(h.t, http.StatusSeeOther, resp.StatusCode)
	u, err := h.st.UserByEmail(context.Background(), email)
	require.NoError(h.t, err)
	return c, u
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func location(t *testing.T, resp *http.Response) string {
	t.Helper()
	loc, err := resp.Location()
	require.NoError(t, err)
	return loc.RequestURI()
}

func TestAnonymousAccess(t *testing.T) {
	h := newHarness(t)
	c := h.client()

	resp, _ := h.get(c, "/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", location(t, resp))

	resp, body := h.get(c, "/api/datasets/x/summary")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Please log in.")

	resp, body = h.get(c, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", body)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	c := h.client()

	resp, body := h.post(c, "/register", url.Values{"name": {"Ada"}, "email": {""}, "password": {"pw"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Please fill empty fields.")

	resp, _ = h.post(c, "/register", url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?notice=registered", location(t, resp))

	_, body = h.get(c, "/login?notice=registered")
	assert.Contains(t, body, "New account created! You can now log in.")

	resp, body = h.post(c, "/register", url.Values{"name": {"Ada"}, "email": {"ADA@example.com"}, "password": {"pw"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "User with this email already exists.")

	resp, body = h.post(c, "/login", url.Values{"email": {"ada@example.com"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid email or password.")

	resp, _ = h.post(c, "/login", url.Values{"email": {"ada@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	var session *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookie {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	resp, body = h.get(c, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No analysis history found. Upload and analyze a dataset to get started!")
	assert.Contains(t, body, "ada@example.com")

	resp, _ = h.post(c, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, _ = h.get(c, "/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestUploadChartsAndSummary(t *testing.T) {
	h := newHarness(t)
	c, u := h.signIn("ada@example.com")

	resp, body := h.upload(c, "notes.pdf", "%PDF")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Please upload a CSV or XLSX file.")

	resp, _ = h.upload(c, "sales.csv", salesCSV)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	page := location(t, resp)
	require.True(t, strings.HasPrefix(page, "/datasets/"))
	id := strings.TrimSuffix(strings.TrimPrefix(page, "/datasets/"), "?uploaded=1")

	resp, body = h.get(c, page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "uploaded successfully!")
	assert.Contains(t, body, "Preview of your file")
	assert.Contains(t, body, "Save this Analysis")
	assert.Contains(t, body, "/datasets/"+id+"/charts/heatmap")

	resp, body = h.get(c, "/datasets/"+id+"/charts/heatmap")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))

	resp, body = h.get(c, "/datasets/"+id+"/charts/quick?column=sales&type=Histogram&format=svg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "<svg")

	resp, body = h.get(c, "/datasets/"+id+"/charts/quick?column=region&type=Histogram")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Histogram only works for numeric columns.")

	resp, _ = h.get(c, "/datasets/"+id+"/charts/compare?x=units&y=sales&type=Radar")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.get(c, "/datasets/"+id+"/charts/quick?column=nope&type=Bar")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = h.get(c, "/datasets/"+id+"/cleaned.csv?missing=drop_rows&dedupe=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "region,sales,units\nNorth,10.5,3\nNorth,7.0,5\n", body)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "cleaned_data.csv")

	resp, body = h.get(c, "/api/datasets/"+id+"/summary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum struct {
		Dataset struct {
			Rows int `json:"rows"`
		} `json:"dataset"`
		Columns []struct {
			Name string   `json:"name"`
			Mean *float64 `json:"mean"`
			Top  *string  `json:"top"`
		} `json:"columns"`
		TotalMissing int `json:"total_missing"`
		Correlation  *struct {
			Columns []string `json:"columns"`
		} `json:"correlation"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &sum))
	assert.Equal(t, 4, sum.Dataset.Rows)
	assert.Equal(t, 1, sum.TotalMissing)
	require.Len(t, sum.Columns, 3)
	assert.Nil(t, sum.Columns[0].Mean, "text column mean is null")
	require.NotNil(t, sum.Columns[0].Top)
	assert.Equal(t, "North", *sum.Columns[0].Top)
	require.NotNil(t, sum.Columns[1].Mean)
	assert.InDelta(t, 8.1666, *sum.Columns[1].Mean, 1e-3)
	require.NotNil(t, sum.Correlation)
	assert.Equal(t, []string{"sales", "units"}, sum.Correlation.Columns)

	other, _ := h.signIn("bob@example.com")
	resp, _ = h.get(other, page)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = h.get(other, "/api/datasets/"+id+"/summary")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ds, err := h.ws.Datasets(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Len(t, ds, 1)
}

func TestSaveEditDeleteAnalysis(t *testing.T) {
	h := newHarness(t)
	c, u := h.signIn("ada@example.com")
	ctx := context.Background()

	resp, _ := h.upload(c, "sales.csv", salesCSV)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	id := strings.TrimSuffix(strings.TrimPrefix(location(t, resp), "/datasets/"), "?uploaded=1")

	resp, _ = h.post(c, "/datasets/"+id+"/save", url.Values{
		"column": {"sales"}, "chart_type": {"Histogram"},
		"x": {"units"}, "y": {"sales"}, "comparison_type": {"Correlation"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc := location(t, resp)
	require.True(t, strings.HasSuffix(loc, "?notice=saved"))
	analysisID := strings.TrimSuffix(strings.TrimPrefix(loc, "/analyses/"), "?notice=saved")

	resp, body := h.get(c, loc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Analysis history saved.")
	assert.Contains(t, body, "Correlation between units and sales")
	assert.NotContains(t, body, "Save Changes")

	_, body = h.get(c, "/")
	assert.Contains(t, body, "Analyzed &#39;sales.csv&#39; with 4 rows and 3 columns.")

	resp, body = h.get(c, "/analyses/"+analysisID+"/edit?chart_type=Pie")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Edit Saved Analysis: sales.csv")
	assert.Contains(t, body, "Save Changes")

	resp, _ = h.post(c, "/analyses/"+analysisID, url.Values{"chart_type": {"Pie"}, "column": {"region"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	op, err := h.ws.OpenAnalysis(ctx, u.ID, analysisID)
	require.NoError(t, err)
	assert.Equal(t, charts.QuickPlotConfig{Column: "region", ChartType: charts.Pie}, op.Config.QuickPlot)
	assert.Equal(t, charts.CompareCorrelation, op.Config.Compare.ComparisonType)

	resp, _ = h.post(c, "/analyses/"+analysisID+"/delete", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?notice=deleted", location(t, resp))
	resp, _ = h.get(c, "/analyses/"+analysisID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearHistory(t *testing.T) {
	h := newHarness(t)
	c, u := h.signIn("ada@example.com")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, _ := h.upload(c, "sales.csv", salesCSV)
		id := strings.TrimSuffix(strings.TrimPrefix(location(t, resp), "/datasets/"), "?uploaded=1")
		resp, _ = h.post(c, "/datasets/"+id+"/save", nil)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	}
	hist, err := h.ws.History(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)

	resp, _ := h.post(c, "/history/clear", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body := h.get(c, "/?notice=cleared")
	assert.Contains(t, body, "All analysis history deleted.")
	assert.Contains(t, body, "No analysis history found.")

	ds, err := h.ws.Datasets(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestDiscardUpload(t *testing.T) {
	h := newHarness(t)
	c, _ := h.signIn("ada@example.com")

	resp, _ := h.upload(c, "sales.csv", salesCSV)
	id := strings.TrimSuffix(strings.TrimPrefix(location(t, resp), "/datasets/"), "?uploaded=1")
	resp, _ = h.post(c, "/datasets/"+id+"/discard", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, _ = h.get(c, "/datasets/"+id)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = h.post(c, "/datasets/"+id+"/discard", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.upload(c, "sales.csv", salesCSV)
	id = strings.TrimSuffix(strings.TrimPrefix(location(t, resp), "/datasets/"), "?uploaded=1")
	resp, _ = h.post(c, "/datasets/"+id+"/save", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, body := h.post(c, "/datasets/"+id+"/discard", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "Saved datasets are removed through their analysis.")
}

func TestSavedDatasetFileMissing(t *testing.T) {
	h := newHarness(t)
	c, u := h.signIn("ada@example.com")
	ctx := context.Background()

	resp, _ := h.upload(c, "sales.csv", salesCSV)
	id := strings.TrimSuffix(strings.TrimPrefix(location(t, resp), "/datasets/"), "?uploaded=1")
	resp, _ = h.post(c, "/datasets/"+id+"/save", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	analysisID := strings.TrimSuffix(strings.TrimPrefix(location(t, resp), "/analyses/"), "?notice=saved")

	ld, err := h.ws.Dataset(ctx, u.ID, id)
	require.NoError(t, err)
	require.NoError(t, os.Remove(ld.Dataset.StoragePath))

	resp, body := h.get(c, "/analyses/"+analysisID)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Contains(t, body, "Saved dataset not found for this analysis.")
	resp, _ = h.get(c, "/analyses/"+analysisID+"/edit")
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestUploadTooLarge(t *testing.T) {
	h := newHarnessWith(t, Options{PreviewRows: 5, MaxUploadBytes: 1 << 10})
	c, u := h.signIn("ada@example.com")

	big := "a,b\n" + strings.Repeat("1234567,7654321\n", 640)
	resp, body := h.upload(c, "big.csv", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Contains(t, body, "File is larger than 1 KB.")

	ds, err := h.ws.Datasets(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, ds)

	resp, _ = h.upload(c, "small.csv", "a,b\n1,2\n")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestChartsWithInfiniteValues(t *testing.T) {
	h := newHarness(t)
	c, _ := h.signIn("ada@example.com")

	resp, _ := h.upload(c, "inf.csv", "a,b\n1,2\ninf,3\n4,5\n")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	id := strings.TrimSuffix(strings.TrimPrefix(location(t, resp), "/datasets/"), "?uploaded=1")

	for _, path := range []string{
		"/charts/compare?x=a&y=b&type=Scatter",
		"/charts/compare?x=a&y=b&type=Line",
		"/charts/quick?column=a&type=Histogram",
		"/charts/quick?column=a&type=Line",
		"/charts/heatmap",
	} {
		resp, body := h.get(c, "/datasets/"+id+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.True(t, strings.HasPrefix(body, "\x89PNG"), path)
	}
	resp, _ = h.get(c, "/datasets/"+id)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := h.get(c, "/api/datasets/"+id+"/summary")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, json.Valid([]byte(body)))
}
