//go:build linux

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/wardenlabs/warden/internal/sandbox"
)

// sandboxExec applies the sandbox to this process and replaces it with
// the shell command. Invoked as:
//
//	warden sandbox-exec [-w path]... [-u] -- <command>
//
// The confinement happens after fork and before exec, so the parent
// warden process is never restricted.
func sandboxExec(args []string) int {
	var writePaths []string
	allowUnsandboxed := false
	command := ""

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-w":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "sandbox-exec: -w needs a path")
				return 2
			}
			i++
			writePaths = append(writePaths, args[i])
		case "-u":
			allowUnsandboxed = true
		case "--":
			if i+1 < len(args) {
				command = args[i+1]
			}
			i = len(args)
		default:
			fmt.Fprintf(os.Stderr, "sandbox-exec: unknown flag %s\n", args[i])
			return 2
		}
	}
	if command == "" {
		fmt.Fprintln(os.Stderr, "sandbox-exec: no command")
		return 2
	}

	res, err := sandbox.Apply(sandbox.Options{WritePaths: writePaths})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandbox-exec: %v\n", err)
		return 125
	}
	confined := res.Filesystem == sandbox.StatusApplied || res.Syscalls == sandbox.StatusApplied
	if !confined && !allowUnsandboxed {
		fmt.Fprintln(os.Stderr, "sandbox-exec: kernel lacks sandbox support, refusing to run unconfined")
		return 125
	}

	shell := "/bin/sh"
	if err := unix.Exec(shell, []string{"sh", "-c", command}, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox-exec: exec %s: %v\n", shell, err)
		return 126
	}
	return 0 // unreachable
}
