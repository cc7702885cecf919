package policy

// defaultRules returns the compiled-in rule table. The forbidden set is a
// last-resort backstop: it must survive any misconfiguration of the rule
// file or autonomy level.
func defaultRules() []Rule {
	return []Rule{
		// Irreversible or system-destroying actions with no legitimate
		// agent use case.
		{
			Prefixes: []string{"rm -rf /", "rm -fr /", "rm -rf --no-preserve-root"},
			Decision: Forbidden,
			Reason:   "recursive deletion of the filesystem root",
		},
		{
			Prefixes: []string{
				"mkfs", "mkfs.ext2", "mkfs.ext3", "mkfs.ext4", "mkfs.xfs",
				"mkfs.btrfs", "mkfs.vfat", "mkfs.ntfs", "mke2fs", "mkswap",
			},
			Decision: Forbidden,
			Reason:   "filesystem format destroys all data on the target device",
		},
		{
			Prefixes: []string{"dd if=/dev/zero of=/dev/", "dd if=/dev/urandom of=/dev/", "dd of=/dev/s"},
			Decision: Forbidden,
			Reason:   "raw write to a block device",
		},
		{
			Prefixes: []string{":(){ :|:& };:", ":(){:|:&};:"},
			Decision: Forbidden,
			Reason:   "fork bomb",
		},
		{
			Prefixes: []string{"chmod -R 777 /", "chmod -R 0777 /", "chmod 777 /"},
			Decision: Forbidden,
			Reason:   "recursive world-writable permissions on the filesystem root",
		},
		{
			Prefixes: []string{"shutdown", "reboot", "halt", "poweroff", "init 0", "init 6", "telinit"},
			Decision: Forbidden,
			Reason:   "power or runlevel control",
		},

		// Reversible but consequential system changes: a human decides.
		{
			Prefixes: []string{
				"systemctl", "systemctl start", "systemctl stop", "systemctl restart",
				"systemctl enable", "systemctl disable", "service",
			},
			Decision: Prompt,
			Reason:   "service lifecycle change",
		},
		{
			Prefixes: []string{"iptables", "ip6tables", "nft", "ufw", "firewall-cmd"},
			Decision: Prompt,
			Reason:   "firewall modification",
		},
		{
			Prefixes: []string{
				"useradd", "userdel", "usermod", "groupadd", "groupdel",
				"groupmod", "passwd", "chpasswd", "gpasswd",
			},
			Decision: Prompt,
			Reason:   "user or group management",
		},
		{
			Prefixes: []string{"mount", "umount"},
			Decision: Prompt,
			Reason:   "filesystem mount operation",
		},
		{
			Prefixes: []string{"fdisk", "parted", "gdisk", "sfdisk", "cfdisk"},
			Decision: Prompt,
			Reason:   "disk partition tool",
		},
		{
			Prefixes: []string{
				"apt install", "apt remove", "apt purge", "apt-get install",
				"apt-get remove", "apt-get purge", "dnf install", "dnf remove",
				"yum install", "yum remove", "pacman -S", "pacman -R",
				"pip install", "pip3 install", "npm install -g",
			},
			Decision: Prompt,
			Reason:   "package install or remove",
		},

		// Read-only inspection.
		{
			Prefixes: []string{
				"ls", "cat", "head", "tail", "less", "file", "stat", "wc",
				"grep", "rg", "find", "tree", "du", "df", "diff", "md5sum",
				"sha256sum", "readlink", "realpath",
			},
			Decision: Allow,
			Reason:   "read-only file inspection",
		},
		{
			Prefixes: []string{
				"ps", "top", "free", "uptime", "uname", "whoami", "id",
				"hostname", "date", "env", "printenv", "which", "type",
				"lscpu", "lsblk", "lsusb", "lspci", "ss", "ip addr", "ip route",
			},
			Decision: Allow,
			Reason:   "system, process, or resource query",
		},
		{
			Prefixes: []string{"echo", "printf", "pwd", "true", "false", "basename", "dirname"},
			Decision: Allow,
			Reason:   "safe output command",
		},
		{
			Prefixes: []string{
				"git status", "git log", "git diff", "git show", "git branch",
				"git remote -v", "git blame", "git describe",
			},
			Decision: Allow,
			Reason:   "read-only version-control inspection",
		},
		{
			Prefixes: []string{
				"apt list", "apt show", "apt-cache", "dpkg -l", "dpkg -s",
				"dnf list", "dnf info", "rpm -q", "pacman -Q",
				"pip list", "pip show", "pip3 list", "npm list", "npm ls",
			},
			Decision: Allow,
			Reason:   "read-only package query",
		},
		{
			Prefixes: []string{"systemctl status", "systemctl is-active", "systemctl list-units"},
			Decision: Allow,
			Reason:   "read-only service status query",
		},
	}
}
