package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the open file limit below which large builds may
// fail while merging segments.
const MinFileDescriptors = 1024

// CheckFileDescriptors warns when the open file limit is low.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors"}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d (recommended: %d)", rLimit.Cur, MinFileDescriptors)
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d", rLimit.Cur)
	return result
}
