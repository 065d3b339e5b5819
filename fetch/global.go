package fetch

import (
	"sync"

	"go.uber.org/zap"
)

var (
	globalFetcher *Fetcher
	globalMu      sync.Mutex
)

// DefaultFetcher returns the shared fetcher, creating it with New() on first
// use unless SetGlobal has installed one.
func DefaultFetcher() *Fetcher {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalFetcher == nil {
		globalFetcher = New()
	}
	return globalFetcher
}

// SetGlobal installs f as the shared fetcher. It must be called before the
// first DefaultFetcher call; later calls are ignored with a warning.
func SetGlobal(f *Fetcher) {
	if f == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalFetcher != nil {
		zap.L().Warn("fetch: SetGlobal called after the default fetcher was initialized; ignoring")
		return
	}
	globalFetcher = f
}
