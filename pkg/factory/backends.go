package factory

import (
	"context"

	"github.com/abrandao/iotseries/pkg/ierrors"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries/backend"
	"github.com/abrandao/iotseries/pkg/timeseries/backend/lsm"
	"github.com/abrandao/iotseries/pkg/timeseries/backend/memory"
	"github.com/abrandao/iotseries/pkg/timeseries/backend/sqlbackend"
)

// BackendFactory implements timeseries.Factory over a Document: it
// materializes each declared series' backend by kind, and serves the
// single auto-create template (if configured) for undeclared names.
// Grounded on the teacher's pkg/server/setup.go InitializeStorage,
// generalized from "one storage kind for the whole process" to
// "per-series declared kind".
type BackendFactory struct {
	doc      *Document
	sqlStore *sqlbackend.Store
	lsmStore *lsm.Store
}

// NewBackendFactory opens the shared sql/lsm stores doc declares are
// needed (lazily: only if some series or the auto-create template
// actually references that kind) and returns a ready BackendFactory.
func NewBackendFactory(doc *Document) (*BackendFactory, error) {
	f := &BackendFactory{doc: doc}

	needsSQL := doc.AutoCreate != nil && doc.AutoCreate.Backend == KindSQL
	needsLSM := doc.AutoCreate != nil && doc.AutoCreate.Backend == KindLSM
	for _, s := range doc.Series {
		needsSQL = needsSQL || s.Backend == KindSQL
		needsLSM = needsLSM || s.Backend == KindLSM
	}

	if needsSQL {
		store, err := sqlbackend.Open(doc.SQL.Path)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.Fatal, "factory: cannot open sql store", err)
		}
		f.sqlStore = store
	}
	if needsLSM {
		store, err := lsm.Open(lsm.Config{
			Path:        doc.LSM.Path,
			InMemory:    doc.LSM.InMemory,
			MaxMemoryMB: doc.LSM.MaxMemoryMB,
		})
		if err != nil {
			if f.sqlStore != nil {
				f.sqlStore.Close()
			}
			return nil, ierrors.Wrap(ierrors.Fatal, "factory: cannot open lsm store", err)
		}
		f.lsmStore = store
	}

	return f, nil
}

// Close releases every shared store this factory opened.
func (f *BackendFactory) Close() error {
	var firstErr error
	if f.sqlStore != nil {
		if err := f.sqlStore.Close(); err != nil {
			firstErr = err
		}
	}
	if f.lsmStore != nil {
		if err := f.lsmStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CreateManual builds the backend for a name declared in doc.Series.
func (f *BackendFactory) CreateManual(name string) (backend.Backend, error) {
	spec, ok := f.doc.Series[name]
	if !ok {
		return nil, ierrors.New(ierrors.Fatal, "factory: series not declared: "+name)
	}
	return f.build(name, spec.Backend, spec.MaxLength, spec.MaxSizeBytes, true)
}

// CreateAuto builds a backend for an undeclared name per the
// configured AutoCreateSpec, or reports ok=false if none is configured.
func (f *BackendFactory) CreateAuto(name string) (backend.Backend, message.TimestampType, bool, error) {
	if f.doc.AutoCreate == nil {
		return nil, 0, false, nil
	}
	policy, err := ParsePolicy(f.doc.AutoCreate.Policy)
	if err != nil {
		return nil, 0, false, err
	}

	b, err := f.build(name, f.doc.AutoCreate.Backend, f.doc.AutoCreate.MaxLength, f.doc.AutoCreate.MaxSizeBytes, false)
	if err != nil {
		return nil, 0, false, err
	}
	return b, policy, true, nil
}

func (f *BackendFactory) build(name string, kind BackendKind, maxLength, maxSizeBytes uint64, manual bool) (backend.Backend, error) {
	switch kind {
	case "", KindMemory:
		return memory.New(maxLength, maxSizeBytes), nil

	case KindSQL:
		ctx := context.Background()
		if manual {
			return f.sqlStore.CreateSeries(ctx, name, maxLength, maxSizeBytes)
		}
		b, err := f.sqlStore.OpenSeries(ctx, name)
		if err == nil {
			return b, nil
		}
		return f.sqlStore.CreateSeries(ctx, name, maxLength, maxSizeBytes)

	case KindLSM:
		return f.lsmStore.Series(context.Background(), name, maxLength, maxSizeBytes)

	default:
		return nil, ierrors.New(ierrors.Fatal, "factory: unknown backend kind "+string(kind))
	}
}
