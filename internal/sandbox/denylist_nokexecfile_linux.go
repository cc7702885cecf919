//go:build linux && !amd64 && !arm64 && !loong64 && !riscv64 && !ppc64 && !ppc64le && !s390x

package sandbox

// archDeniedSyscalls is empty on ports without kexec_file_load (the
// 32-bit and mips ports never gained the syscall).
func archDeniedSyscalls() []uint32 { return nil }
