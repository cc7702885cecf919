package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultPluginTimeout applies when a manifest entry gives none.
const defaultPluginTimeout = 60 * time.Second

type manifestFile struct {
	Tools []manifestTool `yaml:"tools"`
}

type manifestTool struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Command     []string `yaml:"command"`
	Write       bool     `yaml:"write"`
	Timeout     string   `yaml:"timeout"`
}

// LoadManifest registers external command-backed tools from a YAML
// manifest. Each plugin receives the tool input on stdin and its
// combined output becomes the tool result. Plugins go through the same
// dispatcher gates as built-ins; a manifest entry marked write is
// subject to the write cooldown and unreachable below workspace level.
func LoadManifest(path string, reg *Registry, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "manifest")

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("manifest: %w", err)
	}
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return 0, fmt.Errorf("manifest: parse %s: %w", path, err)
	}

	registered := 0
	for _, mt := range mf.Tools {
		if mt.Name == "" || len(mt.Command) == 0 {
			return registered, fmt.Errorf("manifest: tool %q needs a name and a command", mt.Name)
		}
		timeout := defaultPluginTimeout
		if mt.Timeout != "" {
			timeout, err = time.ParseDuration(mt.Timeout)
			if err != nil {
				return registered, fmt.Errorf("manifest: tool %s: bad timeout: %w", mt.Name, err)
			}
		}
		reg.Register(Tool{
			Name:        mt.Name,
			Description: mt.Description,
			Write:       mt.Write,
			Handler:     pluginHandler(mt.Command, timeout),
		})
		logger.Info("registered plugin tool", "name", mt.Name, "command", mt.Command[0])
		registered++
	}
	return registered, nil
}

func pluginHandler(command []string, timeout time.Duration) Handler {
	return func(ctx context.Context, input string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Stdin = strings.NewReader(input)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return "", fmt.Errorf("plugin %s: %w: %s", command[0], err, strings.TrimSpace(string(out)))
		}
		return string(out), nil
	}
}
