// Package resource samples host resources for admission checks and health
// reporting. Only disk space gates admission; memory and CPU figures are
// observational.
package resource

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/convarr/convarr/internal/converr"
)

// Snapshot is a point-in-time resource sample. It carries no freshness
// guarantee; callers treat it as advisory.
type Snapshot struct {
	Timestamp       time.Time `json:"timestamp"`
	FreeDiskBytes   uint64    `json:"free_disk_bytes"`
	TotalDiskBytes  uint64    `json:"total_disk_bytes"`
	AvailableMemory uint64    `json:"available_memory_bytes"`
	TotalMemory     uint64    `json:"total_memory_bytes"`
	Load1           float64   `json:"load_1min"`
	CPUCores        int       `json:"cpu_cores"`
}

// ProcessTreeStats aggregates memory across this process and its engine
// children.
type ProcessTreeStats struct {
	MainRSSBytes  uint64 `json:"main_rss_bytes"`
	ChildRSSBytes uint64 `json:"child_rss_bytes"`
	ChildCount    int    `json:"child_count"`
}

// Monitor samples host resources and enforces the free-disk admission
// threshold.
type Monitor struct {
	minFreeDisk uint64
	logger      *slog.Logger
}

// NewMonitor creates a Monitor that requires minFreeDisk bytes on the output
// volume before admitting a conversion.
func NewMonitor(minFreeDisk uint64, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{minFreeDisk: minFreeDisk, logger: logger.With("component", "resource")}
}

// Snapshot samples free disk on the volume holding path plus memory and load.
// Memory and load sampling failures are logged and zeroed rather than
// propagated, since they never gate admission.
func (m *Monitor) Snapshot(path string) (Snapshot, error) {
	snap := Snapshot{Timestamp: time.Now().UTC(), CPUCores: runtime.NumCPU()}

	usage, err := disk.Usage(nearestExisting(path))
	if err != nil {
		return snap, converr.New(converr.KindSystem, "sampling disk usage for %s: %v", path, err)
	}
	snap.FreeDiskBytes = usage.Free
	snap.TotalDiskBytes = usage.Total

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		snap.AvailableMemory = vm.Available
		snap.TotalMemory = vm.Total
	} else if err != nil {
		m.logger.Debug("memory sampling failed", "error", err)
	}

	if avg, err := load.Avg(); err == nil && avg != nil {
		snap.Load1 = avg.Load1
	} else if err != nil {
		m.logger.Debug("load sampling failed", "error", err)
	}

	return snap, nil
}

// CheckDisk verifies the volume holding path has at least the configured
// free space. A failure here rejects the conversion before it consumes a
// permit.
func (m *Monitor) CheckDisk(path string) error {
	snap, err := m.Snapshot(path)
	if err != nil {
		return err
	}
	if snap.FreeDiskBytes < m.minFreeDisk {
		return converr.DiskSpace(snap.FreeDiskBytes/(1024*1024), m.minFreeDisk/(1024*1024))
	}
	return nil
}

// MinFreeDiskBytes returns the configured admission threshold.
func (m *Monitor) MinFreeDiskBytes() uint64 {
	return m.minFreeDisk
}

// ProcessTree reports memory for this process and its children. Engine
// subprocesses dominate the child figures during conversions.
func (m *Monitor) ProcessTree() ProcessTreeStats {
	stats := ProcessTreeStats{}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
		stats.MainRSSBytes = mi.RSS
	}
	children, err := proc.Children()
	if err != nil {
		return stats
	}
	stats.ChildCount = len(children)
	for _, child := range children {
		if mi, err := child.MemoryInfo(); err == nil && mi != nil {
			stats.ChildRSSBytes += mi.RSS
		}
	}
	return stats
}

// nearestExisting walks up from path to the closest existing directory so
// disk usage can be sampled for outputs whose directory is created later.
func nearestExisting(path string) string {
	for p := path; ; {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}
