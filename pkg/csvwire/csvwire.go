// Package csvwire implements the CSV wire format shared by CSVSource,
// CSVSink, and the REST surface's bulk export helper: one line per
// item, four comma-separated, double-quote-escaped fields.
package csvwire

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/abrandao/iotseries/pkg/ierrors"
)

// Record is a single decoded CSV wire line.
type Record struct {
	Series    string
	Timestamp int64
	Metadata  string
	Value     []byte
}

// Writer encodes Records as CSV lines, base64-encoding Value when
// base64 is true.
type Writer struct {
	w      *csv.Writer
	base64 bool
}

// NewWriter wraps w in a CSV encoder. base64 selects whether Value is
// emitted as a base64 string (the documented default) or raw bytes
// reinterpreted as a string.
func NewWriter(w io.Writer, base64 bool) *Writer {
	return &Writer{w: csv.NewWriter(w), base64: base64}
}

// WriteRecord appends one CSV line for rec.
func (w *Writer) WriteRecord(rec Record) error {
	value := string(rec.Value)
	if w.base64 {
		value = base64.StdEncoding.EncodeToString(rec.Value)
	}
	row := []string{
		rec.Series,
		strconv.FormatInt(rec.Timestamp, 10),
		rec.Metadata,
		value,
	}
	if err := w.w.Write(row); err != nil {
		return ierrors.Wrap(ierrors.Transient, "csvwire: write failed", err)
	}
	return nil
}

// Flush flushes buffered output and returns any write error encountered.
func (w *Writer) Flush() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return ierrors.Wrap(ierrors.Transient, "csvwire: flush failed", err)
	}
	return nil
}

// Reader decodes CSV wire lines into Records.
type Reader struct {
	r      *csv.Reader
	base64 bool
}

// NewReader wraps r in a CSV decoder. base64 must match the encoding
// the producer used for the Value field.
func NewReader(r io.Reader, base64 bool) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	return &Reader{r: cr, base64: base64}
}

// ReadRecord decodes the next line. Returns io.EOF when the input is
// exhausted.
func (r *Reader) ReadRecord() (Record, error) {
	row, err := r.r.Read()
	if err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, ierrors.Wrap(ierrors.BadInput, "csvwire: malformed row", err)
	}

	ts, err := strconv.ParseInt(row[1], 10, 64)
	if err != nil {
		return Record{}, ierrors.Wrap(ierrors.BadInput, "csvwire: malformed timestamp "+row[1], err)
	}

	var value []byte
	if r.base64 {
		value, err = base64.StdEncoding.DecodeString(row[3])
		if err != nil {
			return Record{}, ierrors.Wrap(ierrors.BadInput, "csvwire: malformed base64 value", err)
		}
	} else {
		value = []byte(row[3])
	}

	return Record{
		Series:    row[0],
		Timestamp: ts,
		Metadata:  row[2],
		Value:     value,
	}, nil
}

// EncodeRecord is a convenience one-shot encoder for a single record,
// used by CSVSink when appending one line per push rather than
// buffering a stream.
func EncodeRecord(rec Record, base64Encode bool) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf, base64Encode)
	if err := w.WriteRecord(rec); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
