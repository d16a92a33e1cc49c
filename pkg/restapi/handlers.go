// Package restapi implements the HTTP surface of §6: a JSON/REST API
// over pkg/timeseries, plus a per-series WebSocket notification channel.
package restapi

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/abrandao/iotseries/pkg/config"
	"github.com/abrandao/iotseries/pkg/httpx"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

var contentTypeMetadata = regexp.MustCompile(`^[A-Za-z0-9.\-]+/[A-Za-z0-9.\-]+$`)

// Handler serves the REST surface over a single Manager.
type Handler struct {
	mgr *timeseries.Manager
}

// NewHandler builds a Handler bound to mgr.
func NewHandler(mgr *timeseries.Manager) *Handler {
	return &Handler{mgr: mgr}
}

type contentItem struct {
	Timestamp int64  `json:"timestamp"`
	Metadata  string `json:"metadata"`
	Value     string `json:"value"`
	Base64    bool   `json:"base64"`
}

type contentResponse struct {
	Name  string        `json:"name"`
	Items []contentItem `json:"items"`
	Done  bool          `json:"done"`
}

func encodeValue(metadata string, value []byte) contentItem {
	if isASCII(value) {
		return contentItem{Metadata: metadata, Value: string(value), Base64: false}
	}
	return contentItem{Metadata: metadata, Value: base64.StdEncoding.EncodeToString(value), Base64: true}
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c > 127 {
			return false
		}
	}
	return true
}

// ListSeries handles GET /series.
func (h *Handler) ListSeries(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, h.mgr.List())
}

// GetContent handles GET /series/{name}/content?limit=N&since=T|last.
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ctx := r.Context()

	limit := config.DefaultContentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.RespondErrorString(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	reader, err := h.mgr.OpenReader(name, false)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}

	since := r.URL.Query().Get("since")
	var items []contentItem
	var done bool
	if since == "last" {
		items, done, err = readBackward(ctx, reader, limit)
	} else {
		var sinceTS int64
		if since != "" {
			sinceTS, err = strconv.ParseInt(since, 10, 64)
			if err != nil {
				httpx.RespondErrorString(w, http.StatusBadRequest, "invalid since")
				return
			}
		}
		items, done, err = readForward(ctx, reader, sinceTS, limit)
	}
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, contentResponse{Name: name, Items: items, Done: done})
}

func readForward(ctx context.Context, r *timeseries.Reader, since int64, limit int) ([]contentItem, bool, error) {
	items := make([]contentItem, 0, limit)
	ok, err := r.SeekNearest(ctx, since)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return items, true, nil
	}
	for {
		if len(items) >= limit {
			return items, false, nil
		}
		metadata, value, ok, err := r.Read(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return items, true, nil
		}
		item := encodeValue(metadata, value)
		item.Timestamp = r.Timestamp()
		items = append(items, item)

		ok, err = r.SeekNext(ctx, r.Timestamp())
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return items, true, nil
		}
	}
}

func readBackward(ctx context.Context, r *timeseries.Reader, limit int) ([]contentItem, bool, error) {
	rev := make([]contentItem, 0, limit)
	ok, err := r.SeekLast(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return rev, true, nil
	}
	done := false
	for {
		if len(rev) >= limit {
			break
		}
		metadata, value, ok, err := r.Read(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			done = true
			break
		}
		item := encodeValue(metadata, value)
		item.Timestamp = r.Timestamp()
		rev = append(rev, item)

		ok, err = r.SeekPrevious(ctx, r.Timestamp())
		if err != nil {
			return nil, false, err
		}
		if !ok {
			done = true
			break
		}
	}
	items := make([]contentItem, len(rev))
	for i, it := range rev {
		items[len(rev)-1-i] = it
	}
	return items, done, nil
}

// DeleteContent handles DELETE /series/{name}/content: clear content,
// preserving last_timestamp so monotonicity is unaffected.
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	writer, err := h.mgr.OpenWriter(name)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	if err := writer.ClearContent(r.Context()); err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetItem handles GET /series/{name}/content/{ts}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	ts, err := strconv.ParseInt(vars["ts"], 10, 64)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid timestamp")
		return
	}

	reader, err := h.mgr.OpenReader(name, false)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	reader.Seek(ts)
	metadata, value, ok, err := reader.Read(r.Context())
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, "no item at that timestamp")
		return
	}

	contentType := "application/octet-stream"
	if metadata != "" && contentTypeMetadata.MatchString(metadata) {
		contentType = metadata
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(value)
}

// DeleteItem handles DELETE /series/{name}/content/{ts}: delete_range(ts, ts+1).
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	ts, err := strconv.ParseInt(vars["ts"], 10, 64)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid timestamp")
		return
	}

	writer, err := h.mgr.OpenWriter(name)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	if err := writer.DeleteRange(r.Context(), ts, ts+1); err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostAppend handles POST /series/{name}: body is the value, the
// Content-Type header (if any) becomes the metadata, and the
// timestamp is resolved against the series' declared policy.
func (h *Handler) PostAppend(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	h.appendMessage(w, r, name, message.Default, 0)
}

// PutAppend handles PUT /series/{name}/content/{ts}: append at the
// given fixed timestamp.
func (h *Handler) PutAppend(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	ts, err := strconv.ParseInt(vars["ts"], 10, 64)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid timestamp")
		return
	}
	h.appendMessage(w, r, name, message.Fixed, ts)
}

func (h *Handler) appendMessage(w http.ResponseWriter, r *http.Request, name string, tsType message.TimestampType, ts int64) {
	value, err := io.ReadAll(r.Body)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	metadata := r.Header.Get("Content-Type")

	writer, err := h.mgr.OpenWriter(name)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}

	msg := message.Message{TimestampType: tsType, Timestamp: ts, Metadata: metadata, Value: value}
	ok, err := writer.AppendMessage(r.Context(), msg)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	if !ok {
		httpx.RespondErrorString(w, http.StatusBadRequest, "append rejected")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type statisticsResponse struct {
	Name   string  `json:"name"`
	Length uint64  `json:"length"`
	Size   uint64  `json:"size"`
	SizeMB float64 `json:"sizeMB"`
}

// GetStatistics handles GET /series/{name}/statistics.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	writer, err := h.mgr.OpenWriter(name)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	stats, err := writer.Statistics(r.Context())
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, statisticsResponse{
		Name:   name,
		Length: stats.Length,
		Size:   stats.Size,
		SizeMB: float64(stats.Size) / (1024 * 1024),
	})
}
