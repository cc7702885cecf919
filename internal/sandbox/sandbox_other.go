//go:build !linux

package sandbox

// Apply is a no-op outside Linux: both mechanisms are reported as
// unsupported so callers can make their own fail-closed decision.
func Apply(opts Options) (Result, error) {
	opts.logger().Warn("sandbox mechanisms are linux-only, running without confinement support")
	return Result{Filesystem: StatusUnsupported, Syscalls: StatusUnsupported}, nil
}

// Supported reports false outside Linux.
func Supported() bool { return false }
