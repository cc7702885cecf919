//go:build linux && (amd64 || arm64 || loong64 || riscv64 || ppc64 || ppc64le || s390x)

package sandbox

import "golang.org/x/sys/unix"

// archDeniedSyscalls extends the deny list with syscalls that only exist
// on some ports. kexec_file_load is the fd-based kernel image re-exec
// path; without it the kexec_load denial is bypassable.
func archDeniedSyscalls() []uint32 {
	return []uint32{unix.SYS_KEXEC_FILE_LOAD}
}
