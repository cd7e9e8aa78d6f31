// Package preflight checks that an index build can finish before it starts:
// free disk space at the destination, write access and the open file limit.
//
//	checker := preflight.New()
//	results := checker.ForBuild(inputs, dest)
//	if err := preflight.Err(results); err != nil {
//	    return err
//	}
package preflight
