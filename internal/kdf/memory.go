package kdf

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/mem"
)

// MemoryProbe reports the number of bytes currently available for allocation.
type MemoryProbe func() (uint64, error)

// SystemMemory reads available memory from the operating system.
func SystemMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("reading memory statistics: %w", err)
	}
	return vm.Available, nil
}

// memoryBudget admits memory-hard computations against the probe's reading
// minus what earlier admissions still hold. The zero value admits everything.
type memoryBudget struct {
	probe    MemoryProbe
	mu       sync.Mutex
	cond     *sync.Cond
	reserved uint64
}

func (b *memoryBudget) init(probe MemoryProbe) {
	b.probe = probe
	b.cond = sync.NewCond(&b.mu)
}

// reserve blocks until required bytes fit beside the outstanding
// reservations and returns a func that gives them back. It fails with
// ErrResourceExhausted only when nothing else is reserved, since then no
// release can make room. A probe that cannot answer does not block the caller.
func (b *memoryBudget) reserve(required uint64) (func(), error) {
	if b.probe == nil {
		return func() {}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		avail, err := b.probe()
		if err != nil || avail >= b.reserved+required {
			break
		}
		if b.reserved == 0 {
			return nil, fmt.Errorf("%w: need %s, %s available", ErrResourceExhausted,
				humanize.IBytes(required), humanize.IBytes(avail))
		}
		b.cond.Wait()
	}
	b.reserved += required

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.reserved -= required
			b.mu.Unlock()
			b.cond.Broadcast()
		})
	}, nil
}
