package executor

import "sync"

// InFlight tracks executions currently awaiting inclusion, keyed by borrowed
// asset. At most one execution may be in flight per asset, with a global cap
// across all assets. It is safe for concurrent use.
type InFlight struct {
	assets    map[string]struct{}
	globalMax int
	mu        sync.Mutex
}

// NewInFlight creates a registry with the given global cap. A cap of zero or
// less means no global limit.
func NewInFlight(globalMax int) *InFlight {
	return &InFlight{
		assets:    make(map[string]struct{}),
		globalMax: globalMax,
	}
}

// TryAcquire reserves the asset's borrowing capacity. It returns false when
// the asset is already in flight or the global cap is reached; the caller
// must drop the opportunity, not queue it.
func (f *InFlight) TryAcquire(asset string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.assets[asset]; busy {
		return false
	}
	if f.globalMax > 0 && len(f.assets) >= f.globalMax {
		return false
	}
	f.assets[asset] = struct{}{}
	return true
}

// Release frees the asset's slot. Releasing an asset that is not held is a
// no-op.
func (f *InFlight) Release(asset string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.assets, asset)
}

// Count returns the number of in-flight executions.
func (f *InFlight) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.assets)
}
