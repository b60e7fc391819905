// Package threads computes the per-job thread count handed to the indexing
// worker entrypoint.
package threads

import (
	"github.com/shirou/gopsutil/v3/cpu"
)

// NumThreads returns max(minThreads, physical cores). It is queried once per
// job submission (not cached) so a configuration change to minThreads takes
// effect on the very next dispatch (spec §4.5).
func NumThreads(minThreads int) int {
	physical, err := cpu.Counts(false)
	if err != nil || physical < 1 {
		physical = 1
	}
	if physical > minThreads {
		return physical
	}
	return minThreads
}
