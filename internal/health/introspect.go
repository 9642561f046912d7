package health

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/Borislavv/go-asset-guard/model"
)

// Introspector samples process memory. Split out so tests can drive the
// monitor with synthetic samples.
type Introspector interface {
	Sample() (model.MemorySample, error)
}

// ProcessIntrospector reads resident size from the OS via gopsutil and
// heap figures from the Go runtime. The off-heap figure is runtime
// memory held outside the heap (stacks, spans, GC metadata, cgo is not
// visible and counts into resident only).
type ProcessIntrospector struct {
	proc *process.Process
}

func NewProcessIntrospector() (*ProcessIntrospector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attach process introspection: %w", err)
	}
	return &ProcessIntrospector{proc: proc}, nil
}

func (p *ProcessIntrospector) Sample() (model.MemorySample, error) {
	mi, err := p.proc.MemoryInfo()
	if err != nil {
		return model.MemorySample{}, fmt.Errorf("read process memory info: %w", err)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return model.MemorySample{
		Timestamp:      time.Now(),
		ResidentBytes:  mi.RSS,
		HeapTotalBytes: ms.HeapSys,
		HeapUsedBytes:  ms.HeapAlloc,
		ExternalBytes:  ms.Sys - ms.HeapSys,
	}, nil
}

// SystemTotalBytes reports total machine memory, zero when unavailable.
func SystemTotalBytes() uint64 {
	if vmStat, err := mem.VirtualMemory(); err == nil {
		return vmStat.Total
	}
	return 0
}
