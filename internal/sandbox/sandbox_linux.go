//go:build linux

package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// deniedSyscalls is the compiled-in syscall deny list: process tracing,
// mount/unmount, reboot, host identity changes, kernel module handling,
// kernel image re-exec, root pivot, and swap control. Not externally
// configurable; this is a last-resort backstop.
func deniedSyscalls() []uint32 {
	denied := []uint32{
		unix.SYS_PTRACE,
		unix.SYS_MOUNT,
		unix.SYS_UMOUNT2,
		unix.SYS_REBOOT,
		unix.SYS_SETHOSTNAME,
		unix.SYS_SETDOMAINNAME,
		unix.SYS_INIT_MODULE,
		unix.SYS_FINIT_MODULE,
		unix.SYS_DELETE_MODULE,
		unix.SYS_KEXEC_LOAD,
		unix.SYS_PIVOT_ROOT,
		unix.SYS_SWAPON,
		unix.SYS_SWAPOFF,
	}
	return append(denied, archDeniedSyscalls()...)
}

// Apply confines the current process: the Landlock filesystem ruleset
// first, then the seccomp filter. A mechanism the kernel does not support
// is logged and skipped; a supported mechanism that fails during setup
// makes the overall result an error. Apply is meant to run in a child
// process immediately before it execs untrusted code — Landlock and
// seccomp are not revocable from inside the process.
func Apply(opts Options) (Result, error) {
	logger := opts.logger()
	res := Result{}

	abi, err := landlockABI()
	switch {
	case err != nil:
		res.Filesystem = StatusFailed
		return res, fmt.Errorf("landlock probe: %w", err)
	case abi < 1:
		res.Filesystem = StatusUnsupported
		logger.Warn("landlock unavailable on this kernel, filesystem ruleset skipped")
	default:
		if err := applyLandlock(abi, opts.WritePaths); err != nil {
			res.Filesystem = StatusFailed
			return res, fmt.Errorf("landlock: %w", err)
		}
		res.Filesystem = StatusApplied
		logger.Debug("landlock ruleset applied", "abi", abi, "write_paths", opts.WritePaths)
	}

	if !seccompAvailable() {
		res.Syscalls = StatusUnsupported
		logger.Warn("seccomp unavailable on this kernel, syscall filter skipped")
		return res, nil
	}
	if err := applySeccomp(); err != nil {
		res.Syscalls = StatusFailed
		return res, fmt.Errorf("seccomp: %w", err)
	}
	res.Syscalls = StatusApplied
	logger.Debug("seccomp filter applied", "denied_syscalls", len(deniedSyscalls()))
	return res, nil
}

// Supported reports whether at least the filesystem ruleset can be
// established on this kernel. Callers preferring fail-closed behavior
// refuse to run shell commands when this is false.
func Supported() bool {
	abi, err := landlockABI()
	return err == nil && abi >= 1
}

// landlockABI probes the kernel's Landlock ABI version. It returns 0
// when Landlock is missing or disabled, and an error only for unexpected
// probe failures.
func landlockABI() (int, error) {
	abi, _, errno := unix.Syscall(
		unix.SYS_LANDLOCK_CREATE_RULESET,
		0, 0, unix.LANDLOCK_CREATE_RULESET_VERSION,
	)
	if errno != 0 {
		switch errno {
		case unix.ENOSYS, unix.EOPNOTSUPP, unix.ENOPKG, unix.EINVAL:
			return 0, nil
		}
		return 0, fmt.Errorf("landlock_create_ruleset(version): %w", errno)
	}
	return int(abi), nil
}

// applyLandlock builds and activates a ruleset granting read and
// traverse rights across the filesystem root and full rights only under
// the given write roots. Any failure at any step is fatal to sandboxing.
func applyLandlock(abi int, writePaths []string) error {
	readRights := uint64(unix.LANDLOCK_ACCESS_FS_READ_FILE |
		unix.LANDLOCK_ACCESS_FS_READ_DIR)

	writeRights := uint64(unix.LANDLOCK_ACCESS_FS_WRITE_FILE |
		unix.LANDLOCK_ACCESS_FS_REMOVE_DIR |
		unix.LANDLOCK_ACCESS_FS_REMOVE_FILE |
		unix.LANDLOCK_ACCESS_FS_MAKE_CHAR |
		unix.LANDLOCK_ACCESS_FS_MAKE_DIR |
		unix.LANDLOCK_ACCESS_FS_MAKE_REG |
		unix.LANDLOCK_ACCESS_FS_MAKE_SOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_FIFO |
		unix.LANDLOCK_ACCESS_FS_MAKE_BLOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_SYM)
	if abi >= 2 {
		writeRights |= unix.LANDLOCK_ACCESS_FS_REFER
	}
	if abi >= 3 {
		writeRights |= unix.LANDLOCK_ACCESS_FS_TRUNCATE
	}

	rulesetAttr := unix.LandlockRulesetAttr{
		Access_fs: readRights | writeRights,
	}
	ruleset, _, errno := unix.Syscall(
		unix.SYS_LANDLOCK_CREATE_RULESET,
		uintptr(unsafe.Pointer(&rulesetAttr)),
		unsafe.Sizeof(rulesetAttr),
		0,
	)
	if errno != 0 {
		return fmt.Errorf("landlock_create_ruleset: %w", errno)
	}
	defer unix.Close(int(ruleset))

	if err := addPathRule(int(ruleset), "/", readRights); err != nil {
		return fmt.Errorf("grant read on root: %w", err)
	}
	for _, p := range writePaths {
		if err := addPathRule(int(ruleset), p, readRights|writeRights); err != nil {
			return fmt.Errorf("grant write on %s: %w", p, err)
		}
	}

	// No new privileges is irreversible and required before restriction.
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl no_new_privs: %w", err)
	}
	if _, _, errno := unix.Syscall(unix.SYS_LANDLOCK_RESTRICT_SELF, ruleset, 0, 0); errno != 0 {
		return fmt.Errorf("landlock_restrict_self: %w", errno)
	}
	return nil
}

// addPathRule attaches a path-beneath rule to an open ruleset fd.
func addPathRule(ruleset int, path string, access uint64) error {
	fd, err := unix.Open(path, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer unix.Close(fd)

	attr := unix.LandlockPathBeneathAttr{
		Parent_fd:      int32(fd),
		Allowed_access: access,
	}
	if _, _, errno := unix.Syscall(
		unix.SYS_LANDLOCK_ADD_RULE,
		uintptr(ruleset),
		unix.LANDLOCK_RULE_PATH_BENEATH,
		uintptr(unsafe.Pointer(&attr)),
	); errno != 0 {
		return fmt.Errorf("landlock_add_rule: %w", errno)
	}
	return nil
}

// seccompAvailable probes for seccomp filter support.
func seccompAvailable() bool {
	action := uint32(retAllow)
	_, _, errno := unix.Syscall(
		unix.SYS_SECCOMP,
		unix.SECCOMP_GET_ACTION_AVAIL,
		0,
		uintptr(unsafe.Pointer(&action)),
	)
	return errno != unix.ENOSYS
}

// applySeccomp installs the deny-list filter on the current process.
func applySeccomp() error {
	prog, err := DenyListFilter(deniedSyscalls(), uint16(unix.EPERM))
	if err != nil {
		return err
	}

	filter := make([]unix.SockFilter, len(prog))
	for i, in := range prog {
		filter[i] = unix.SockFilter{Code: in.Code, Jt: in.Jt, Jf: in.Jf, K: in.K}
	}
	fprog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl no_new_privs: %w", err)
	}
	if _, _, errno := unix.Syscall(
		unix.SYS_SECCOMP,
		unix.SECCOMP_SET_MODE_FILTER,
		0,
		uintptr(unsafe.Pointer(&fprog)),
	); errno != 0 {
		return fmt.Errorf("seccomp(SET_MODE_FILTER): %w", errno)
	}
	return nil
}
