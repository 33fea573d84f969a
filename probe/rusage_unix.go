//go:build unix

package probe

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// rusageMaxRSS reports ru_maxrss, which is kilobytes on Linux and bytes on
// Darwin.
func rusageMaxRSS() (int64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, fmt.Errorf("getrusage: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return int64(ru.Maxrss), nil
	}

	return int64(ru.Maxrss) * 1024, nil
}
