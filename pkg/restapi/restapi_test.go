package restapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
	"github.com/abrandao/iotseries/pkg/timeseries/backend"
	"github.com/abrandao/iotseries/pkg/timeseries/backend/memory"
)

type staticFactory struct{}

func (staticFactory) CreateManual(name string) (backend.Backend, error) {
	return memory.New(0, 0), nil
}

func (staticFactory) CreateAuto(name string) (backend.Backend, message.TimestampType, bool, error) {
	return nil, 0, false, nil
}

func newTestRouter(t *testing.T) (*timeseries.Manager, http.Handler) {
	t.Helper()
	mgr := timeseries.NewManager(staticFactory{})
	return mgr, NewRouter(mgr)
}

func TestListSeriesAndPostAppend(t *testing.T) {
	mgr, router := newTestRouter(t)
	require.NoError(t, mgr.Create("temperature", message.Sequence))

	req := httptest.NewRequest(http.MethodPost, "/series/temperature", strings.NewReader("21.5"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/series", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	require.Equal(t, []string{"temperature"}, names)
}

func TestGetContentForwardAndStatistics(t *testing.T) {
	mgr, router := newTestRouter(t)
	require.NoError(t, mgr.Create("readings", message.Sequence))

	for _, body := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodPost, "/series/readings", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, "append %q", body)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/series/readings/content?since=0&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp contentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Done)
	require.Len(t, resp.Items, 2)
	require.Equal(t, "a", resp.Items[0].Value)
	require.Equal(t, "b", resp.Items[1].Value)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/series/readings/statistics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats statisticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.EqualValues(t, 3, stats.Length)
}

func TestGetContentSinceLastReturnsTrailingItems(t *testing.T) {
	mgr, router := newTestRouter(t)
	require.NoError(t, mgr.Create("events", message.Sequence))

	for _, body := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/series/events", strings.NewReader(body)))
		require.Equal(t, http.StatusCreated, rec.Code, "append %q", body)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/series/events/content?since=last&limit=2", nil))

	var resp contentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	require.Equal(t, "b", resp.Items[0].Value)
	require.Equal(t, "c", resp.Items[1].Value)
}

func TestDeleteContentAndItem(t *testing.T) {
	mgr, router := newTestRouter(t)
	require.NoError(t, mgr.Create("buf", message.Sequence))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/series/buf", strings.NewReader("x")))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/series/buf/content/0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "x", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/series/buf/content/0", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/series/buf/content/0", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutAppendAtFixedTimestamp(t *testing.T) {
	mgr, router := newTestRouter(t)
	require.NoError(t, mgr.Create("fixed", message.Fixed))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/series/fixed/content/42", strings.NewReader("v")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/series/fixed/content/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "v", rec.Body.String())
}

func TestExportThenImportRoundTrips(t *testing.T) {
	mgr, router := newTestRouter(t)
	require.NoError(t, mgr.Create("src", message.Sequence))
	require.NoError(t, mgr.Create("dst", message.Sequence))

	for _, body := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/series/src", strings.NewReader(body)))
		require.Equal(t, http.StatusCreated, rec.Code, "append %q", body)
	}

	exportRec := httptest.NewRecorder()
	router.ServeHTTP(exportRec, httptest.NewRequest(http.MethodGet, "/series/src/export", nil))
	require.Equal(t, http.StatusOK, exportRec.Code)

	importRec := httptest.NewRecorder()
	router.ServeHTTP(importRec, httptest.NewRequest(http.MethodPost, "/series/dst/import", strings.NewReader(exportRec.Body.String())))
	require.Equal(t, http.StatusOK, importRec.Code, importRec.Body.String())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/series/dst/statistics", nil))

	var stats statisticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.EqualValues(t, 2, stats.Length)
}

func TestPostAppendToUnknownSeriesIsNotFound(t *testing.T) {
	_, router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/series/ghost", strings.NewReader("v")))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
