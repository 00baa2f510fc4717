// Package schema holds the global pool of characteristic definitions.
package schema

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// NormalizeName trims surrounding whitespace and converts s to Unicode
// NFC. Names compare byte-for-byte after normalization, so lookups are
// case-sensitive but insensitive to composed/decomposed spellings.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Registry is the set of characteristic definitions. It is safe for
// concurrent use. A nil port keeps definitions in memory only.
type Registry struct {
	mu     sync.RWMutex
	port   types.Persistence
	logger *zap.Logger
	now    func() time.Time
	defs   map[string]types.Characteristic
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock replaces time.Now for definition timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry backed by port.
func NewRegistry(port types.Persistence, opts ...Option) *Registry {
	r := &Registry{
		port:   port,
		logger: zap.NewNop(),
		now:    time.Now,
		defs:   make(map[string]types.Characteristic),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Define validates and registers a new characteristic. The port is
// written before the registry changes; a port failure leaves the registry
// untouched.
func (r *Registry) Define(ctx context.Context, name string, dt types.DataType, nullable bool, extra types.Constraints) (types.Characteristic, error) {
	c, err := build(name, dt, nullable, extra)
	if err != nil {
		return types.Characteristic{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[c.Name]; ok {
		return types.Characteristic{}, fmt.Errorf("%w: %q", types.ErrDuplicateName, c.Name)
	}
	c.CreatedAt = r.now().UTC()

	if r.port != nil {
		if err := r.port.SaveSchema(ctx, c); err != nil {
			r.logger.Warn("saving characteristic failed", zap.String("name", c.Name), zap.Error(err))
			return types.Characteristic{}, types.PersistenceError("save schema", err)
		}
	}
	r.defs[c.Name] = c
	r.logger.Debug("characteristic defined", zap.String("name", c.Name), zap.Stringer("type", c.DataType))
	return c.Clone(), nil
}

// Get returns the named characteristic.
func (r *Registry) Get(name string) (types.Characteristic, error) {
	name = NormalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.defs[name]
	if !ok {
		return types.Characteristic{}, fmt.Errorf("characteristic %q: %w", name, types.ErrNotFound)
	}
	return c.Clone(), nil
}

// List returns every characteristic sorted by name.
func (r *Registry) List() []types.Characteristic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Characteristic, 0, len(r.defs))
	for _, name := range slices.Sorted(maps.Keys(r.defs)) {
		out = append(out, r.defs[name].Clone())
	}
	return out
}

// Len returns the number of registered characteristics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Remove deletes the named characteristic without checking for groups
// that reference it. Callers that need the in-use guard go through
// store.Store.DeleteCharacteristic.
func (r *Registry) Remove(ctx context.Context, name string) error {
	name = NormalizeName(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[name]; !ok {
		return fmt.Errorf("characteristic %q: %w", name, types.ErrNotFound)
	}
	if r.port != nil {
		if err := r.port.DeleteSchema(ctx, name); err != nil {
			r.logger.Warn("deleting characteristic failed", zap.String("name", name), zap.Error(err))
			return types.PersistenceError("delete schema", err)
		}
	}
	delete(r.defs, name)
	r.logger.Debug("characteristic removed", zap.String("name", name))
	return nil
}

// Load replaces the registry contents with the port's schema. Entries are
// re-validated; an invalid stored entry aborts the load.
func (r *Registry) Load(ctx context.Context) error {
	if r.port == nil {
		return nil
	}
	entries, err := r.port.LoadSchema(ctx)
	if err != nil {
		return types.PersistenceError("load schema", err)
	}

	defs := make(map[string]types.Characteristic, len(entries))
	for _, e := range entries {
		c, err := build(e.Name, e.DataType, e.Nullable, e.Constraints())
		if err != nil {
			return fmt.Errorf("loading characteristic %q: %w", e.Name, err)
		}
		if _, dup := defs[c.Name]; dup {
			return fmt.Errorf("loading characteristic %q: %w", c.Name, types.ErrDuplicateName)
		}
		c.CreatedAt = e.CreatedAt.UTC()
		defs[c.Name] = c
	}

	r.mu.Lock()
	r.defs = defs
	r.mu.Unlock()
	r.logger.Debug("schema loaded", zap.Int("characteristics", len(defs)))
	return nil
}

// build normalizes and validates a definition.
func build(name string, dt types.DataType, nullable bool, extra types.Constraints) (types.Characteristic, error) {
	name = NormalizeName(name)
	if name == "" {
		return types.Characteristic{}, fmt.Errorf("%w: characteristic name is empty", types.ErrInvalidName)
	}
	if !dt.Valid() {
		return types.Characteristic{}, fmt.Errorf("%w: %w: %q", types.ErrInvalidDefinition, types.ErrInvalidDataType, dt)
	}

	c := types.Characteristic{Name: name, DataType: dt, Nullable: nullable}

	if dt == types.DataTypeEnum {
		if len(extra.Options) == 0 {
			return types.Characteristic{}, fmt.Errorf("%w: enum %q needs at least one option", types.ErrInvalidDefinition, name)
		}
		seen := make(map[string]bool, len(extra.Options))
		for _, opt := range extra.Options {
			opt = norm.NFC.String(opt)
			if opt == "" {
				return types.Characteristic{}, fmt.Errorf("%w: enum %q has an empty option", types.ErrInvalidDefinition, name)
			}
			if seen[opt] {
				return types.Characteristic{}, fmt.Errorf("%w: enum %q repeats option %q", types.ErrInvalidDefinition, name, opt)
			}
			seen[opt] = true
			c.Options = append(c.Options, opt)
		}
	} else if len(extra.Options) > 0 {
		return types.Characteristic{}, fmt.Errorf("%w: options are only allowed on enum, not %s", types.ErrInvalidDefinition, dt)
	}

	if extra.Min != nil || extra.Max != nil {
		if !dt.Numeric() {
			return types.Characteristic{}, fmt.Errorf("%w: min/max are only allowed on numeric types, not %s", types.ErrInvalidDefinition, dt)
		}
		for _, b := range []*float64{extra.Min, extra.Max} {
			if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
				return types.Characteristic{}, fmt.Errorf("%w: bound %v is not a finite number", types.ErrInvalidDefinition, *b)
			}
		}
		if extra.Min != nil && extra.Max != nil && *extra.Min > *extra.Max {
			return types.Characteristic{}, fmt.Errorf("%w: min %v is greater than max %v", types.ErrInvalidDefinition, *extra.Min, *extra.Max)
		}
		bounds := types.Characteristic{Min: extra.Min, Max: extra.Max}.Clone()
		c.Min, c.Max = bounds.Min, bounds.Max
	}
	return c, nil
}
