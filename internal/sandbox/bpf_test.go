package sandbox

import (
	"errors"
	"testing"
)

func TestDenyListFilter_KnownGoodSequence(t *testing.T) {
	// ptrace is 101 on amd64; use literal numbers so the expected byte
	// sequence is platform independent.
	prog, err := DenyListFilter([]uint32{101, 165}, 1) // EPERM
	if err != nil {
		t.Fatalf("DenyListFilter: %v", err)
	}

	want := []Instruction{
		{Code: 0x20, Jt: 0, Jf: 0, K: 0},          // ld [0] — syscall nr
		{Code: 0x15, Jt: 0, Jf: 1, K: 101},        // jeq #101
		{Code: 0x06, Jt: 0, Jf: 0, K: 0x00050001}, // ret ERRNO(1)
		{Code: 0x15, Jt: 0, Jf: 1, K: 165},        // jeq #165
		{Code: 0x06, Jt: 0, Jf: 0, K: 0x00050001}, // ret ERRNO(1)
		{Code: 0x06, Jt: 0, Jf: 0, K: 0x7fff0000}, // ret ALLOW
	}
	if len(prog) != len(want) {
		t.Fatalf("program length %d, want %d", len(prog), len(want))
	}
	for i := range want {
		if prog[i] != want[i] {
			t.Errorf("instruction %d: got %+v, want %+v", i, prog[i], want[i])
		}
	}
}

func TestDenyListFilter_SizeScales(t *testing.T) {
	// Each deny entry costs exactly two instructions, plus load and
	// fall-through allow.
	for _, n := range []int{1, 5, 14} {
		denied := make([]uint32, n)
		for i := range denied {
			denied[i] = uint32(100 + i)
		}
		prog, err := DenyListFilter(denied, 1)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if got, want := len(prog), 2+2*n; got != want {
			t.Errorf("n=%d: program length %d, want %d", n, got, want)
		}
	}
}

func TestDenyListFilter_EmptyDenyList(t *testing.T) {
	if _, err := DenyListFilter(nil, 1); !errors.Is(err, ErrEmptyDenyList) {
		t.Errorf("expected ErrEmptyDenyList, got %v", err)
	}
}

func TestDenyListFilter_TooLarge(t *testing.T) {
	denied := make([]uint32, maxFilter)
	if _, err := DenyListFilter(denied, 1); !errors.Is(err, ErrFilterTooLarge) {
		t.Errorf("expected ErrFilterTooLarge, got %v", err)
	}
}

func TestValidate_RejectsTampered(t *testing.T) {
	prog, err := DenyListFilter([]uint32{101}, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Missing terminal allow.
	if err := validate(prog[:len(prog)-1]); err == nil {
		t.Error("validate should reject a program without a terminal allow")
	}

	// Wrong jump offsets silently change semantics.
	bad := make([]Instruction, len(prog))
	copy(bad, prog)
	bad[1].Jf = 2
	if err := validate(bad); err == nil {
		t.Error("validate should reject altered jump offsets")
	}

	// Return action that is not ERRNO.
	copy(bad, prog)
	bad[2].K = retAllow
	if err := validate(bad); err == nil {
		t.Error("validate should reject a non-errno deny return")
	}
}
