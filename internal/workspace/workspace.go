// Package workspace resolves and maintains the on-disk workspace layout
// (C11): the directory tree holding agent definitions, session storage,
// logs, tool output, the credential/causal knowledge base, audit tracking,
// cache, and MCP transport credentials.
package workspace

import (
	"os"
	"path/filepath"
)

const (
	rootEnvVar    = "CODECODER_WORKSPACE"
	defaultSubdir = ".codecoder/workspace"
	dirMode       = 0o700
	authFileMode  = 0o600
)

// Layout is the resolved set of paths under a workspace root.
type Layout struct {
	Root string

	Hands      string
	Storage    string
	Log        string
	ToolOutput string
	Knowledge  string
	Tracking   string
	Cache      string

	McpAuthPath string
}

// Resolve determines the workspace root from the first match of: the
// CODECODER_WORKSPACE environment variable, configuredPath (typically from
// config.json or a --workspace flag), or ~/.codecoder/workspace, then
// returns the full Layout without touching the filesystem.
func Resolve(configuredPath string) (*Layout, error) {
	root := os.Getenv(rootEnvVar)
	if root == "" {
		root = configuredPath
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		root = filepath.Join(home, defaultSubdir)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	return &Layout{
		Root:        root,
		Hands:       filepath.Join(root, "hands"),
		Storage:     filepath.Join(root, "storage"),
		Log:         filepath.Join(root, "log"),
		ToolOutput:  filepath.Join(root, "tool-output"),
		Knowledge:   filepath.Join(root, "knowledge"),
		Tracking:    filepath.Join(root, "tracking"),
		Cache:       filepath.Join(root, "cache"),
		McpAuthPath: filepath.Join(root, "mcp-auth.json"),
	}, nil
}

// EnsureDirs creates every workspace directory (mode 0700) if missing. It
// does not create mcp-auth.json; that file is created lazily by whatever
// component first writes MCP transport credentials, with mode 0600.
func (l *Layout) EnsureDirs() error {
	for _, dir := range []string{
		l.Root,
		l.Hands,
		l.Storage,
		l.Log,
		filepath.Join(l.Log, "observability"),
		l.ToolOutput,
		l.Knowledge,
		l.Tracking,
		l.Cache,
	} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return err
		}
	}
	return nil
}

// ObservabilityLogDir returns the directory the tracer writes trace JSONL
// files into.
func (l *Layout) ObservabilityLogDir() string {
	return filepath.Join(l.Log, "observability")
}

// EnsureMcpAuthFile creates mcp-auth.json with 0600 permissions if it does
// not already exist, seeding it with an empty JSON object.
func (l *Layout) EnsureMcpAuthFile() error {
	if _, err := os.Stat(l.McpAuthPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(l.McpAuthPath, []byte("{}"), authFileMode)
}
