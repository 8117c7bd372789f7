package registry

import (
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/layout"
)

// Registry maps Go type identities to their records.
// Additive only: records are never removed. Safe for concurrent use.
type Registry struct {
	byType  map[reflect.Type]*Record
	byIndex []*Record
	mu      sync.RWMutex
}

// New creates an empty registry. Most callers want GetOrInit; New exists
// for isolated registries in tools and tests.
func New() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*Record),
	}
}

var (
	process     *Registry
	processOnce sync.Once
)

// GetOrInit returns the process-wide registry, creating it on first use.
// Every binding technology calls it before casting, whether or not it
// registers types of its own, so that types registered by technologies
// loaded earlier are visible.
func GetOrInit() *Registry {
	processOnce.Do(func() {
		process = New()
		Logger().Debug("type registry initialized")
	})
	return process
}

// Register inserts rec. Registering a type again with the same holder kind
// returns the existing record. A different holder kind fails with a
// registration conflict.
func (r *Registry) Register(rec Record) (*Record, error) {
	if rec.Type == nil {
		return nil, errors.InvalidInput(errors.PhaseRegister, "record type cannot be nil")
	}
	if !rec.Holder.Valid() {
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			GoType(rec.Type.String()).
			Detail("invalid holder kind %d", rec.Holder).
			Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byType[rec.Type]; ok {
		if existing.Holder != rec.Holder {
			err := errors.RegistrationConflict(rec.Type.String(),
				existing.Holder.String(), rec.Holder.String(), existing.Technology)
			Logger().Error("registration conflict",
				zap.String("type", rec.Type.String()),
				zap.String("owner", existing.Technology),
				zap.String("requested_by", rec.Technology),
				zap.Error(err))
			return nil, err
		}
		Logger().Debug("type already registered",
			zap.String("type", rec.Type.String()),
			zap.String("owner", existing.Technology),
			zap.String("requested_by", rec.Technology))
		return existing, nil
	}

	stored := rec
	if stored.Name == "" {
		stored.Name = rec.Type.String()
	}
	if stored.Layout.Size == 0 {
		info := layout.ForObject(stored.Layout.Shape)
		stored.Layout.Size = info.Size
		stored.Layout.Align = info.Align
	}
	if stored.Class == nil {
		stored.Class = host.NewClass(stored.Name)
	}
	stored.Index = len(r.byIndex)

	r.byType[stored.Type] = &stored
	r.byIndex = append(r.byIndex, &stored)

	Logger().Debug("type registered",
		zap.String("type", stored.Type.String()),
		zap.String("name", stored.Name),
		zap.Stringer("holder", stored.Holder),
		zap.String("technology", stored.Technology),
		zap.Int("index", stored.Index))

	return &stored, nil
}

// Lookup returns the record for t.
func (r *Registry) Lookup(t reflect.Type) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byType[t]
	return rec, ok
}

// ByIndex returns the record with the given dense index.
func (r *Registry) ByIndex(i int) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.byIndex) {
		return nil, false
	}
	return r.byIndex[i], true
}

// ByName returns the first record registered under name.
func (r *Registry) ByName(name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.byIndex {
		if rec.Name == name {
			return rec, true
		}
	}
	return nil, false
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byIndex)
}

// Records returns a snapshot of all records sorted by name.
func (r *Registry) Records() []*Record {
	r.mu.RLock()
	out := make([]*Record, len(r.byIndex))
	copy(out, r.byIndex)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// TypeFor returns the registry identity of T.
func TypeFor[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Register inserts a record for T.
func Register[T any](r *Registry, rec Record) (*Record, error) {
	rec.Type = TypeFor[T]()
	return r.Register(rec)
}

// LookupFor returns the record for T.
func LookupFor[T any](r *Registry) (*Record, bool) {
	return r.Lookup(TypeFor[T]())
}
