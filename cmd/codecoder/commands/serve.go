package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codecoder/codecoder/internal/clog"
	"github.com/codecoder/codecoder/internal/rpc"
	"github.com/spf13/cobra"
)

var (
	servePort   int
	serveAPIKey string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the codecoder gateway",
	Long: `Start codecoder as a headless gateway exposing the task supervisor,
vault, scanner, and causal graph store over a local HTTP RPC surface.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8765, "Port to listen on")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "Static API key required on every request (empty disables auth)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	apiKey := serveAPIKey
	if apiKey == "" {
		apiKey = rt.cfg.Gateway.APIKey
	}
	port := servePort
	if port == 8765 && rt.cfg.Gateway.Port != 0 {
		port = rt.cfg.Gateway.Port
	}

	httpSrv := rpc.NewHTTPServer(rpc.HTTPConfig{
		Addr:       fmt.Sprintf("127.0.0.1:%d", port),
		APIKey:     apiKey,
		EnableCORS: rt.cfg.Gateway.EnableCORS,
	}, rt.dispatcher)

	clog.Info().Int("port", port).Str("workspace", rt.layout.Root).Msg("starting codecoder gateway")

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: %v", errBind, err)
		}
		return nil
	case sig := <-quit:
		clog.Info().Str("signal", sig.String()).Msg("shutting down gateway")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			clog.Error().Err(err).Msg("gateway shutdown error")
		}

		clog.Info().Msg("gateway stopped")
		os.Exit(130)
		return nil
	}
}
