package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-ingest/internal/document"
	"github.com/bull/pdf-ingest/internal/fetch"
	"github.com/bull/pdf-ingest/internal/jobs"
	"github.com/bull/pdf-ingest/internal/storage"
)

type fakeIndex struct {
	count    int
	countErr error
	hits     []storage.Hit
	lastK    int
}

func (f *fakeIndex) Exists(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}
func (f *fakeIndex) Upsert(context.Context, []string, []document.Segment) error { return nil }
func (f *fakeIndex) Count(context.Context) (int, error)                         { return f.count, f.countErr }
func (f *fakeIndex) DeleteCollection(context.Context) error                     { return nil }
func (f *fakeIndex) Query(_ context.Context, _ string, k int) ([]storage.Hit, error) {
	f.lastK = k
	return f.hits, nil
}

type fakeRebuilder struct {
	calls int
	err   error
}

func (f *fakeRebuilder) Rebuild(context.Context) error {
	f.calls++
	return f.err
}

type fakeScraper struct {
	links []string
	err   error
}

func (f *fakeScraper) PDFLinks(context.Context, string) ([]string, error) {
	return f.links, f.err
}

type testEnv struct {
	srv       *httptest.Server
	queue     *jobs.Queue
	index     *fakeIndex
	rebuilder *fakeRebuilder
	scraper   *fakeScraper
	workDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := jobs.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// Workers are never started, so submitted jobs stay PENDING.
	q := jobs.NewQueue(store, jobs.QueueOptions{}, nil)
	noop := func(context.Context, *jobs.Record) (any, error) { return nil, nil }
	q.Register(jobs.KindIngest, noop)
	q.Register(jobs.KindFetch, noop)

	env := &testEnv{
		queue:     q,
		index:     &fakeIndex{count: 7},
		rebuilder: &fakeRebuilder{},
		scraper:   &fakeScraper{},
		workDir:   t.TempDir(),
	}
	s := New(Config{WorkDir: env.workDir, MaxUploadBytes: 1 << 20}, Deps{
		Queue:     q,
		Index:     env.index,
		Rebuilder: env.rebuilder,
		Scraper:   env.scraper,
	}, nil)
	env.srv = httptest.NewServer(s.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSubmitAndGetJob(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/jobs", `{"inputs":["/data/a.pdf"]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	sub := decode[submitResponse](t, resp)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, jobs.KindIngest, sub.Kind)

	resp = env.get(t, "/api/jobs/"+sub.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[jobs.Record](t, resp)
	assert.Equal(t, jobs.StatePending, rec.State)
	assert.Equal(t, []string{"/data/a.pdf"}, rec.Inputs)

	resp = env.get(t, "/api/jobs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]jobs.Record](t, resp), 1)
}

func TestSubmitJob_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/jobs", `{"inputs":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorResponse](t, resp).Error, "no inputs")

	resp = env.postJSON(t, "/api/jobs", `{"kind":"reindex","inputs":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.postJSON(t, "/api/jobs", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.get(t, "/api/jobs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func uploadRequest(t *testing.T, url, filename, contentType string, body []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	url := env.srv.URL + "/api/documents/upload"

	resp := uploadRequest(t, url, "report.pdf", "application/octet-stream", []byte("%PDF-1.4 one"))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	first := decode[uploadResponse](t, resp)
	assert.Equal(t, filepath.Join(env.workDir, "report.pdf"), first.Path)
	assert.False(t, first.Overwritten)
	assert.NotEmpty(t, first.JobID)

	resp = uploadRequest(t, url, "../../report.pdf", "application/octet-stream", []byte("%PDF-1.4 two"))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	second := decode[uploadResponse](t, resp)
	assert.Equal(t, first.Path, second.Path)
	assert.True(t, second.Overwritten)

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 two", string(data))

	rec, err := env.queue.Status(context.Background(), second.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.KindIngest, rec.Kind)
	assert.Equal(t, []string{first.Path}, rec.Inputs)
}

func TestUpload_ContentTypeAccepted(t *testing.T) {
	env := newTestEnv(t)
	resp := uploadRequest(t, env.srv.URL+"/api/documents/upload", "scan", "application/pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestUpload_RejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)
	resp := uploadRequest(t, env.srv.URL+"/api/documents/upload", "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_, err := os.Stat(filepath.Join(env.workDir, "notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoad(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/documents/load", `{"url":"https://example.com/a.pdf"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, jobs.KindFetch, decode[loadResponse](t, resp).Kind)

	resp = env.postJSON(t, "/api/documents/load", `{"url":"/data/local.pdf"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, jobs.KindIngest, decode[loadResponse](t, resp).Kind)

	resp = env.postJSON(t, "/api/documents/load", `{"url":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScrape(t *testing.T) {
	env := newTestEnv(t)
	env.scraper.links = []string{"https://example.com/a.pdf", "https://example.com/b.pdf"}

	resp := env.postJSON(t, "/api/documents/scrape", `{"url":"https://example.com/"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	out := decode[scrapeResponse](t, resp)
	assert.Equal(t, env.scraper.links, out.Links)
	require.Len(t, out.JobIDs, 2)

	rec, err := env.queue.Status(context.Background(), out.JobIDs[1])
	require.NoError(t, err)
	assert.Equal(t, jobs.KindFetch, rec.Kind)
	assert.Equal(t, []string{"https://example.com/b.pdf"}, rec.Inputs)
}

func TestScrape_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	env.scraper.err = fmt.Errorf("%w: host resolves to loopback", fetch.ErrUnsafeURL)
	resp := env.postJSON(t, "/api/documents/scrape", `{"url":"http://localhost/"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	env.scraper.err = fmt.Errorf("%w: server returned 500", fetch.ErrFetchFailed)
	resp = env.postJSON(t, "/api/documents/scrape", `{"url":"https://example.com/"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestIndexEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.index.hits = []storage.Hit{{ID: "report:0:abc", Content: "text", Score: 0.9}}

	resp := env.get(t, "/api/index/count")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]int{"count": 7}, decode[map[string]int](t, resp))

	resp = env.get(t, "/api/index/query?q=vectors&k=500")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[queryResponse](t, resp)
	assert.Equal(t, "vectors", out.Query)
	assert.Len(t, out.Hits, 1)
	assert.Equal(t, maxQueryK, env.index.lastK)

	resp = env.get(t, "/api/index/query")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.postJSON(t, "/api/index/rebuild", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, env.rebuilder.calls)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h := decode[HealthResponse](t, resp)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 7, h.Documents)

	env.index.countErr = storage.ErrIndexUnavailable
	resp = env.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", decode[HealthResponse](t, resp).Status)
}

func TestServerErrorsHideDetails(t *testing.T) {
	env := newTestEnv(t)

	env.rebuilder.err = errors.New("delete collection: open /srv/ingest/index.gob: permission denied")
	resp := env.postJSON(t, "/api/index/rebuild", ``)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "internal server error", body["error"])

	env.rebuilder.err = fmt.Errorf("%w: rpc error: dial tcp 10.0.3.7:6334", storage.ErrIndexUnavailable)
	resp = env.postJSON(t, "/api/index/rebuild", ``)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body = decode[map[string]string](t, resp)
	assert.Equal(t, "index unavailable", body["error"])

	env.scraper.err = fmt.Errorf("%w: dial tcp 10.0.3.7:443: connection refused", fetch.ErrFetchFailed)
	resp = env.postJSON(t, "/api/documents/scrape", `{"url":"https://example.com/"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body = decode[map[string]string](t, resp)
	assert.NotContains(t, body["error"], "10.0.3.7")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(fmt.Errorf("x: %w", storage.ErrIndexUnavailable)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
