package restapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abrandao/iotseries/pkg/csvwire"
	"github.com/abrandao/iotseries/pkg/httpx"
	"github.com/abrandao/iotseries/pkg/message"
)

// GetExport handles GET /series/{name}/export: streams the entire
// series as pkg/csvwire CSV, oldest item first. Grounded on the
// teacher's pkg/export.Exporter.ExportToCSV, rewritten around a single
// untyped series (no metric names/labels to collect columns for).
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ctx := r.Context()

	reader, err := h.mgr.OpenReader(name, false)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)

	out := csvwire.NewWriter(w, true)
	ok, err := reader.SeekFirst(ctx)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	for ok {
		metadata, value, found, err := reader.Read(ctx)
		if err != nil || !found {
			break
		}
		rec := csvwire.Record{Series: name, Timestamp: reader.Timestamp(), Metadata: metadata, Value: value}
		if err := out.WriteRecord(rec); err != nil {
			break
		}
		ok, err = reader.SeekNext(ctx, reader.Timestamp())
		if err != nil {
			break
		}
	}
	out.Flush()
}

// PostImport handles POST /series/{name}/import: reads a pkg/csvwire
// CSV body and appends every record's value/metadata to name, ignoring
// the CSV's own series/timestamp columns so the import always lands
// under name with timestamps resolved by its declared policy.
func (h *Handler) PostImport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ctx := r.Context()

	writer, err := h.mgr.OpenWriter(name)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}

	in := csvwire.NewReader(r.Body, true)
	imported := 0
	for {
		rec, err := in.ReadRecord()
		if err != nil {
			break
		}
		msg := message.Message{TimestampType: message.Default, Metadata: rec.Metadata, Value: rec.Value}
		if _, err := writer.AppendMessage(ctx, msg); err != nil {
			httpx.RespondError(w, statusFor(err), err)
			return
		}
		imported++
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]int{"imported": imported})
}
