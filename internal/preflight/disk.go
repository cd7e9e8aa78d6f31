package preflight

import (
	"fmt"
	"syscall"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/profiling"
)

// MinDiskSpaceBytes is the free space below which a build is refused.
const MinDiskSpaceBytes = 100 * 1024 * 1024

// IndexSizeFactor is the expected index size relative to its input; the
// n-gram fields dominate.
const IndexSizeFactor = 4

// CheckDiskSpace fails below the minimum and warns below estimate bytes.
func (c *Checker) CheckDiskSpace(dir string, estimate uint64) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
		Code:     errors.ErrCodeDiskFull,
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}
	available := stat.Bavail * uint64(stat.Bsize)

	switch {
	case available < c.minFreeBytes:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s free (minimum: %s)",
			profiling.FormatBytes(available), profiling.FormatBytes(c.minFreeBytes))
		result.Details = "Free up space or build to another disk"
	case available < estimate:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s free, index may need about %s",
			profiling.FormatBytes(available), profiling.FormatBytes(estimate))
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s free", profiling.FormatBytes(available))
	}
	return result
}
