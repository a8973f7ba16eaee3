package cache

// Handle is an eagerly materialized, pinned reference into the cache for
// block idx: acquiring it either reads the block and decodes it, or
// installs a freshly constructed value, and its presence blocks the GC's
// Scanning-to-Sweeping transition until Release is called.
//
// Handle never owns the cache's storage; it only observes it by index.
// Container internals do not use Handle at all — they talk to Cache directly by
// index, exactly so that an outstanding iterator never blocks a sweep.
// Handle exists for application code that wants to pin a block across
// several operations.
type Handle[T any] struct {
	c   *Cache
	idx uint64
}

// Acquire materializes idx (via load, if not already cached) and pins it.
func Acquire[T any](c *Cache, idx uint64, load func() (T, WriteFunc, error)) (*Handle[T], error) {
	_, err := c.Get(idx, func() (any, WriteFunc, error) {
		v, write, err := load()
		return v, write, err
	})
	if err != nil {
		return nil, err
	}
	c.acquire()
	return &Handle[T]{c: c, idx: idx}, nil
}

// AcquireNew installs a brand new value at idx (a freshly allocated
// block) and pins it.
func AcquireNew[T any](c *Cache, idx uint64, value T, write WriteFunc) *Handle[T] {
	c.Put(idx, value, write)
	c.acquire()
	return &Handle[T]{c: c, idx: idx}
}

// Get returns the handle's current value.
func (h *Handle[T]) Get() T {
	v, _ := peekTyped[T](h.c, h.idx)
	return v
}

// Set replaces the handle's value, following the cache's copy-on-write
// discipline.
func (h *Handle[T]) Set(v T) error { return h.c.Update(h.idx, v) }

// Release unpins the handle. Once every outstanding handle has been
// released, the GC may proceed past Scanning.
func (h *Handle[T]) Release() { h.c.release() }

// LazyHandle defers materialization until the first Get.
type LazyHandle[T any] struct {
	c      *Cache
	idx    uint64
	load   func() (T, WriteFunc, error)
	loaded bool
}

// AcquireLazy pins idx without reading it yet.
func AcquireLazy[T any](c *Cache, idx uint64, load func() (T, WriteFunc, error)) *LazyHandle[T] {
	c.acquire()
	return &LazyHandle[T]{c: c, idx: idx, load: load}
}

// Get materializes idx on first call and returns its value thereafter.
func (h *LazyHandle[T]) Get() (T, error) {
	if !h.loaded {
		if _, err := h.c.Get(h.idx, func() (any, WriteFunc, error) {
			v, write, err := h.load()
			return v, write, err
		}); err != nil {
			var zero T
			return zero, err
		}
		h.loaded = true
	}
	return peekTyped[T](h.c, h.idx)
}

// Release unpins the handle.
func (h *LazyHandle[T]) Release() { h.c.release() }

func peekTyped[T any](c *Cache, idx uint64) (T, error) {
	v, ok := c.Peek(idx)
	if !ok {
		var zero T
		return zero, nil
	}
	return v.(T), nil
}
