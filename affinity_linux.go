//go:build linux

package archive

import (
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// primeCodecWorkers pins the calling OS thread to cpus, runs warmup (which
// should trigger the codec's worker-pool bring-up), then restores the
// thread's previous affinity. Failures are logged and treated as
// non-fatal: warmup still runs, just without pinning.
func primeCodecWorkers(logger *zap.Logger, cpus []int, warmup func()) {
	if len(cpus) == 0 {
		warmup()
		return
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		logger.Warn("failed to read current CPU affinity, skipping worker pinning", zap.Error(err))
		warmup()
		return
	}

	var want unix.CPUSet
	want.Zero()
	for _, c := range cpus {
		want.Set(c)
	}
	if err := unix.SchedSetaffinity(0, &want); err != nil {
		logger.Warn("failed to set CPU affinity for worker bring-up", zap.Error(err))
		warmup()
		return
	}

	warmup()

	if err := unix.SchedSetaffinity(0, &prev); err != nil {
		logger.Warn("failed to restore CPU affinity after worker bring-up", zap.Error(err))
	}
}
