package executor

import "runtime"

// MemoryMonitor samples current memory utilization as a 0-1 ratio. The
// batch runner's backpressure logic depends only on this interface so tests
// can drive it without touching real process memory.
type MemoryMonitor interface {
	Utilization() float64
}

// RuntimeMonitor reports the Go heap's utilization of its reserved space.
type RuntimeMonitor struct{}

// Utilization returns HeapAlloc/HeapSys.
func (RuntimeMonitor) Utilization() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapSys == 0 {
		return 0
	}
	return float64(m.HeapAlloc) / float64(m.HeapSys)
}

// GCHint asks the runtime to collect garbage now. Split out so tests can
// observe the batch runner issuing the hint.
type GCHint func()

// defaultGCHint triggers a blocking collection.
func defaultGCHint() {
	runtime.GC()
}
