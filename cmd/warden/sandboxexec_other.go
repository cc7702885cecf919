//go:build !linux

package main

import (
	"fmt"
	"os"
	"os/exec"
)

// sandboxExec has no confinement mechanisms outside Linux. It runs the
// command only when unsandboxed execution was explicitly allowed.
func sandboxExec(args []string) int {
	allowUnsandboxed := false
	command := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-w":
			i++ // write paths are meaningless without a sandbox
		case "-u":
			allowUnsandboxed = true
		case "--":
			if i+1 < len(args) {
				command = args[i+1]
			}
			i = len(args)
		}
	}
	if command == "" {
		fmt.Fprintln(os.Stderr, "sandbox-exec: no command")
		return 2
	}
	if !allowUnsandboxed {
		fmt.Fprintln(os.Stderr, "sandbox-exec: no sandbox on this platform, refusing to run unconfined")
		return 125
	}

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "sandbox-exec: %v\n", err)
		return 126
	}
	return 0
}
