package commands

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/codecoder/codecoder/internal/clog"
	"github.com/codecoder/codecoder/internal/rpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var (
	mcpTransport string
	mcpPort      int
	mcpAPIKey    string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the codecoder surface over the Model Context Protocol",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	RunE:  runMCPServe,
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport to serve over (http|stdio)")
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 8766, "Port to listen on (http transport only)")
	mcpServeCmd.Flags().StringVar(&mcpAPIKey, "api-key", "", "Static API key required on every request (http transport only)")
	mcpCmd.AddCommand(mcpServeCmd)
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	mcpSrv := rpc.NewMCPServer(rpc.MCPConfig{
		Implementation: mcp.Implementation{Name: "codecoder", Version: Version},
	}, rt.dispatcher, rt.tools)

	switch mcpTransport {
	case "stdio":
		clog.Info().Msg("starting codecoder MCP server over stdio")

		ctx, cancel := context.WithCancel(context.Background())
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-quit
			cancel()
		}()

		err := mcpSrv.ServeStdio(ctx)
		if ctx.Err() != nil {
			os.Exit(130)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", errBind, err)
		}
		return nil

	case "http":
		addr := fmt.Sprintf("127.0.0.1:%d", mcpPort)
		apiKey := mcpAPIKey
		if apiKey == "" {
			apiKey = rt.cfg.Gateway.APIKey
		}
		clog.Info().Str("addr", addr).Msg("starting codecoder MCP server over streamable HTTP")

		httpSrv := &http.Server{Addr: addr, Handler: requireAPIKey(apiKey, mcpSrv.StreamableHTTPHandler())}

		errCh := make(chan error, 1)
		go func() { errCh <- httpSrv.ListenAndServe() }()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("%w: %v", errBind, err)
			}
			return nil
		case <-quit:
			_ = httpSrv.Close()
			os.Exit(130)
			return nil
		}

	default:
		return fmt.Errorf("%w: unknown transport %q (want http or stdio)", errConfig, mcpTransport)
	}
}

// requireAPIKey enforces a static API key over X-API-Key or
// Authorization: Bearer, mirroring rpc.HTTPServer's own auth so the MCP
// http transport has the same --api-key guarantee the gateway does. A
// no-op when key is empty.
func requireAPIKey(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		supplied := r.Header.Get("X-API-Key")
		if supplied == "" {
			if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
				supplied = auth[7:]
			}
		}
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
