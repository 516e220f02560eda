// Package commands provides the codecoder CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/codecoder/codecoder/internal/clog"
	"github.com/codecoder/codecoder/internal/workspace"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags.
var (
	printLogs    bool
	logLevel     string
	logFile      bool
	workspaceDir string
)

var rootCmd = &cobra.Command{
	Use:   "codecoder",
	Short: "codecoder - agent-orchestration runtime",
	Long: `codecoder runs the task supervisor, permission engine, credential
vault, and causal graph store behind a local RPC and MCP surface.

Run 'codecoder serve' to start the gateway, or 'codecoder mcp serve' to
expose the same surface over the Model Context Protocol.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := clog.DefaultConfig()
		logCfg.Level = clog.ParseLevel(logLevel)
		logCfg.Pretty = printLogs
		logCfg.LogToFile = logFile
		if logFile {
			if layout, err := workspace.Resolve(workspaceDir); err == nil && layout.EnsureDirs() == nil {
				logCfg.LogDir = layout.Log
			}
		}

		if !printLogs && !logFile {
			logCfg.Level = clog.FatalLevel
		}

		clog.Init(logCfg)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to the workspace log directory")
	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "workspace", "w", "", "Workspace root (default: $CODECODER_WORKSPACE or ~/.codecoder/workspace)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("codecoder %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(vaultCmd)
}

// Execute runs the root command and returns a process exit code: 0 on clean
// shutdown, 1 on configuration error, 2 on bind failure. On SIGINT/SIGTERM
// the serve commands exit with 130 themselves, so Execute never returns it.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	return 0
}

// GetWorkspaceDir returns the --workspace flag value, or empty to fall back
// to the environment variable / home-directory default.
func GetWorkspaceDir() string {
	return workspaceDir
}
