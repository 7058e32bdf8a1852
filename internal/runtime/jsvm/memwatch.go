package jsvm

import (
	"runtime/metrics"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
)

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// activeWatches counts invocations currently sampling the heap.
var activeWatches atomic.Int64

// memoryWatch interrupts a runtime whose heap growth exceeds the budget.
// The Go heap is shared by every runtime in the process, so the measurement
// is approximate. Growth is taken relative to the heap size at start and the
// limit is scaled by the number of concurrent invocations, so requests that
// each stay within budget never trip one another. A lone invocation is held to
// its exact limit; with N running, one of them may reach N times the limit
// before it is stopped.
type memoryWatch struct {
	done chan struct{}
	once sync.Once
}

func watchMemory(vm *goja.Runtime, limit int64, every time.Duration) *memoryWatch {
	w := &memoryWatch{done: make(chan struct{})}
	if limit <= 0 {
		return w
	}

	activeWatches.Add(1)
	baseline := heapBytes()
	go func() {
		defer activeWatches.Add(-1)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-w.done:
				return
			case <-ticker.C:
				if overLimit(heapBytes()-baseline, limit, activeWatches.Load()) {
					vm.Interrupt(reasonMemoryLimit)
					return
				}
			}
		}
	}()
	return w
}

func overLimit(growth, limit, active int64) bool {
	if active < 1 {
		active = 1
	}
	return growth/active > limit
}

func (w *memoryWatch) Stop() {
	w.once.Do(func() { close(w.done) })
}

func heapBytes() int64 {
	sample := []metrics.Sample{{Name: heapObjectsMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return int64(sample[0].Value.Uint64())
}
