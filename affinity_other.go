//go:build !linux

package archive

import "go.uber.org/zap"

// primeCodecWorkers runs warmup directly. CPU-affinity pinning for worker
// bring-up is only meaningful on Linux.
func primeCodecWorkers(_ *zap.Logger, _ []int, warmup func()) {
	warmup()
}
