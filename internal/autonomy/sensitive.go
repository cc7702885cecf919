package autonomy

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Sensitive paths are a compiled-in backstop, independent of autonomy
// level and not overridable by configuration. They must survive
// misconfiguration of the policy file or autonomy level.

// sensitiveExact are credential files and kernel memory devices blocked
// by exact match.
var sensitiveExact = map[string]bool{
	"/etc/shadow":  true,
	"/etc/gshadow": true,
	"/dev/mem":     true,
	"/dev/kmem":    true,
	"/proc/kcore":  true,
}

// sensitivePathGlobs match against the full cleaned path: raw block
// devices and EFI boot partitions.
var sensitivePathGlobs = []string{
	"/dev/sd*",
	"/dev/nvme*",
	"/dev/hd*",
	"/dev/vd*",
	"/dev/mmcblk*",
}

// sensitivePrefixes block whole trees: EFI boot partitions and firmware
// variables.
var sensitivePrefixes = []string{
	"/boot/efi/",
	"/sys/firmware/efi/",
}

// sensitiveBaseGlobs match against the file name: private-key material.
var sensitiveBaseGlobs = []string{
	"id_rsa", "id_rsa.*",
	"id_ed25519", "id_ed25519.*",
	"id_ecdsa", "id_ecdsa.*",
	"id_dsa", "id_dsa.*",
	"*.pem",
}

// IsSensitivePath reports whether p is excluded from all tool access
// regardless of autonomy level.
func IsSensitivePath(p string) bool {
	cleaned := filepath.Clean(expandHome(strings.TrimSpace(p)))

	if sensitiveExact[cleaned] {
		return true
	}
	for _, pattern := range sensitivePathGlobs {
		if ok, _ := path.Match(pattern, cleaned); ok {
			return true
		}
	}
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(cleaned+"/", prefix) {
			return true
		}
	}
	base := filepath.Base(cleaned)
	for _, pattern := range sensitiveBaseGlobs {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// LooksLikePath reports whether a tool-input line should be treated as a
// filesystem path for the sensitive-path gate.
func LooksLikePath(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "/") ||
		strings.HasPrefix(line, "~") ||
		strings.HasPrefix(line, "./") ||
		strings.HasPrefix(line, "../")
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") || p == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[1:])
	}
	return p
}
