// Package sandbox confines a process before it executes untrusted code,
// using two independent Linux mechanisms: a Landlock filesystem ruleset
// and a seccomp syscall filter. Both are best-effort per mechanism: a
// kernel that lacks one is reported as unsupported, while a supported
// mechanism that fails during setup is a hard error. Whether to run
// unconfined after a failure is the caller's policy decision, never a
// silent fallback here.
package sandbox

import (
	"errors"
	"fmt"
)

// Classic BPF opcode constants. These are stable kernel ABI values; they
// are defined here rather than pulled from golang.org/x/sys so the
// program builder stays testable on every platform.
const (
	opLoadAbs       = 0x20 // BPF_LD  | BPF_W   | BPF_ABS
	opJumpEq        = 0x15 // BPF_JMP | BPF_JEQ | BPF_K
	opReturnK       = 0x06 // BPF_RET | BPF_K
	maxFilter       = 4096 // BPF_MAXINSNS
	seccompNrOffset = 0    // offsetof(struct seccomp_data, nr)
)

// Seccomp return actions.
const (
	retAllow = 0x7fff0000 // SECCOMP_RET_ALLOW
	retErrno = 0x00050000 // SECCOMP_RET_ERRNO, low 16 bits carry the errno
)

// Instruction is one BPF filter instruction (struct sock_filter).
type Instruction struct {
	Code uint16
	Jt   uint8
	Jf   uint8
	K    uint32
}

var (
	// ErrEmptyDenyList is returned when a filter is requested with no
	// denied syscalls.
	ErrEmptyDenyList = errors.New("sandbox: empty syscall deny list")
	// ErrFilterTooLarge is returned when the deny list would exceed the
	// kernel's BPF program size limit.
	ErrFilterTooLarge = errors.New("sandbox: filter exceeds BPF_MAXINSNS")
)

// DenyListFilter builds a seccomp BPF program that loads the syscall
// number, compares it against each denied syscall in sequence, returns
// the given errno on a match, and falls through to unconditional allow.
// Each deny entry costs two instructions (compare + return); order
// affects only program size, not semantics.
func DenyListFilter(denied []uint32, errno uint16) ([]Instruction, error) {
	if len(denied) == 0 {
		return nil, ErrEmptyDenyList
	}
	size := 1 + 2*len(denied) + 1
	if size > maxFilter {
		return nil, ErrFilterTooLarge
	}

	prog := make([]Instruction, 0, size)
	prog = append(prog, Instruction{Code: opLoadAbs, K: seccompNrOffset})
	for _, nr := range denied {
		prog = append(prog,
			Instruction{Code: opJumpEq, Jt: 0, Jf: 1, K: nr},
			Instruction{Code: opReturnK, K: retErrno | uint32(errno)},
		)
	}
	prog = append(prog, Instruction{Code: opReturnK, K: retAllow})

	if err := validate(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// validate checks structural invariants of a filter program. A mis-sized
// program silently under- or over-restricts, so this refuses anything
// that is not exactly a load, a sequence of compare/return pairs, and a
// terminal return.
func validate(prog []Instruction) error {
	if len(prog) < 2 {
		return fmt.Errorf("sandbox: program too short (%d instructions)", len(prog))
	}
	if prog[0].Code != opLoadAbs || prog[0].K != seccompNrOffset {
		return fmt.Errorf("sandbox: program must start by loading the syscall number")
	}
	last := prog[len(prog)-1]
	if last.Code != opReturnK || last.K != retAllow {
		return fmt.Errorf("sandbox: program must end with an unconditional allow")
	}
	body := prog[1 : len(prog)-1]
	if len(body)%2 != 0 {
		return fmt.Errorf("sandbox: malformed deny entries")
	}
	for i := 0; i < len(body); i += 2 {
		jump, ret := body[i], body[i+1]
		if jump.Code != opJumpEq || jump.Jt != 0 || jump.Jf != 1 {
			return fmt.Errorf("sandbox: instruction %d is not a deny compare", i+1)
		}
		if ret.Code != opReturnK || ret.K&0xffff0000 != retErrno {
			return fmt.Errorf("sandbox: instruction %d is not an errno return", i+2)
		}
	}
	return nil
}
