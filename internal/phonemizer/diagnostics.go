package phonemizer

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// ProcessSnapshot captures resource usage of the current process. It is
// logged on recycles and conversion failures to track native resource growth.
type ProcessSnapshot struct {
	OpenFDs       int
	ResidentBytes int
	Threads       int
	Err           error
}

// TakeProcessSnapshot reads /proc/self. On platforms without procfs the
// snapshot carries the read error instead.
func TakeProcessSnapshot() ProcessSnapshot {
	proc, err := procfs.Self()
	if err != nil {
		return ProcessSnapshot{Err: fmt.Errorf("failed to open /proc/self: %w", err)}
	}

	fds, err := proc.FileDescriptorsLen()
	if err != nil {
		return ProcessSnapshot{Err: fmt.Errorf("failed to count file descriptors: %w", err)}
	}

	stat, err := proc.Stat()
	if err != nil {
		return ProcessSnapshot{OpenFDs: fds, Err: fmt.Errorf("failed to read process stat: %w", err)}
	}

	return ProcessSnapshot{
		OpenFDs:       fds,
		ResidentBytes: stat.ResidentMemory(),
		Threads:       stat.NumThreads,
	}
}

func (s ProcessSnapshot) String() string {
	if s.Err != nil {
		return "process_stats=unavailable (" + s.Err.Error() + ")"
	}

	return fmt.Sprintf("open_fds=%d rss_mb=%.1f threads=%d",
		s.OpenFDs, float64(s.ResidentBytes)/1024/1024, s.Threads)
}
