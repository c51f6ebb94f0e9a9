package workflow

import (
	"maps"
	"reflect"
	"slices"

	"github.com/BaSui01/releaseflow/types"
)

// Context is the immutable snapshot threaded through every task call.
//
// C is the resolved command configuration, S the bundle of collaborator
// services. Data accumulates as tasks publish values; publishing produces a
// new snapshot via Fork and never mutates the receiver.
type Context[C any, S any] struct {
	config   C
	services S
	data     map[string]any
}

// NewContext creates the initial snapshot of a run. data is copied.
func NewContext[C any, S any](config C, services S, data map[string]any) *Context[C, S] {
	copied := make(map[string]any, len(data))
	maps.Copy(copied, data)
	return &Context[C, S]{
		config:   config,
		services: services,
		data:     copied,
	}
}

// Config returns the command configuration.
func (c *Context[C, S]) Config() C {
	return c.config
}

// Services returns the collaborator services bundle.
func (c *Context[C, S]) Services() S {
	return c.services
}

// Get retrieves a data value.
func (c *Context[C, S]) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Has reports whether a data key is set.
func (c *Context[C, S]) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Keys returns the data keys in sorted order.
func (c *Context[C, S]) Keys() []string {
	return slices.Sorted(maps.Keys(c.data))
}

// Len returns the number of data entries.
func (c *Context[C, S]) Len() int {
	return len(c.data)
}

// Data returns a copy of the accumulated data.
func (c *Context[C, S]) Data() map[string]any {
	out := make(map[string]any, len(c.data))
	maps.Copy(out, c.data)
	return out
}

// Fork returns a new snapshot that differs from c in exactly one data key.
func (c *Context[C, S]) Fork(key string, value any) *Context[C, S] {
	next := make(map[string]any, len(c.data)+1)
	maps.Copy(next, c.data)
	next[key] = value
	return &Context[C, S]{
		config:   c.config,
		services: c.services,
		data:     next,
	}
}

// ForkAll applies one Fork per entry, in sorted key order.
func (c *Context[C, S]) ForkAll(values map[string]any) *Context[C, S] {
	out := c
	for _, k := range slices.Sorted(maps.Keys(values)) {
		out = out.Fork(k, values[k])
	}
	return out
}

// Value is a typed lookup. A missing key is NOT_FOUND and a value of another
// type is INVALID.
func Value[T any, C any, S any](c *Context[C, S], key string) (T, error) {
	var zero T
	raw, ok := c.data[key]
	if !ok {
		return zero, types.NotFound("data key %q is not set", key)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, types.Invalid("data key %q holds %T, want %T", key, raw, zero)
	}
	return v, nil
}

// changedKeys lists keys whose value was added or replaced between two
// snapshots.
func changedKeys[C any, S any](before, after *Context[C, S]) []string {
	if before == nil || after == nil || before == after {
		return nil
	}
	var out []string
	for _, k := range after.Keys() {
		prev, ok := before.data[k]
		if !ok || !reflect.DeepEqual(prev, after.data[k]) {
			out = append(out, k)
		}
	}
	return out
}
