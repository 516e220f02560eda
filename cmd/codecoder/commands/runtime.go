package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codecoder/codecoder/internal/causal"
	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/internal/config"
	"github.com/codecoder/codecoder/internal/permission"
	"github.com/codecoder/codecoder/internal/rpc"
	"github.com/codecoder/codecoder/internal/scanner"
	"github.com/codecoder/codecoder/internal/supervisor"
	"github.com/codecoder/codecoder/internal/tracer"
	"github.com/codecoder/codecoder/internal/vault"
	"github.com/codecoder/codecoder/internal/workspace"
	"github.com/codecoder/codecoder/pkg/types"
)

const keySeedSize = 32

// runtime bundles every component the serve and mcp commands wire together.
type runtime struct {
	layout *workspace.Layout
	cfg    *types.Config
	clk    *clock.Clock

	vault      *vault.Vault
	causal     *causal.Store
	permission *permission.Engine
	scanner    *scanner.Scanner
	supervisor *supervisor.Supervisor
	tracer     *tracer.Tracer
	watcher    *config.Watcher

	dispatcher *rpc.Dispatcher
	tools      []rpc.ToolSpec
}

// buildRuntime resolves the workspace, loads configuration, and wires every
// component behind a shared Dispatcher. Callers must call close() on the
// result once done.
func buildRuntime() (*runtime, error) {
	layout, err := workspace.Resolve(GetWorkspaceDir())
	if err != nil {
		return nil, fmt.Errorf("%w: resolve workspace: %v", errConfig, err)
	}
	if err := layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("%w: create workspace: %v", errConfig, err)
	}

	cfg, err := config.Load(layout)
	if err != nil {
		return nil, fmt.Errorf("%w: load config: %v", errConfig, err)
	}

	clk := clock.New()

	keySeed, err := loadOrCreateKeySeed(layout, cfg.Vault.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: vault key: %v", errConfig, err)
	}

	vaultPath := cfg.Vault.Path
	if vaultPath == "" {
		vaultPath = filepath.Join(layout.Storage, "vault.json")
	}
	v, err := vault.Open(context.Background(), vaultPath, keySeed, clk)
	if err != nil {
		return nil, fmt.Errorf("%w: open vault: %v", errConfig, err)
	}

	store, err := causal.Open(filepath.Join(layout.Storage, "causal.db"), clk)
	if err != nil {
		return nil, fmt.Errorf("%w: open causal store: %v", errConfig, err)
	}

	permCfg := types.PermissionConfig{}
	if cfg.Permission != nil {
		permCfg = *cfg.Permission
	}
	perm := permission.NewEngine(permCfg, clk)

	scanCfg := scanner.DefaultConfig()
	sc := scanner.New(scanCfg)

	sup := supervisor.New(supervisor.Config{
		NewAgent:   stubAgentFactory,
		Causal:     store,
		Permission: perm,
		Clock:      clk,
	})

	tr, err := tracer.New(
		tracer.ConfigFromEnv(tracer.Config{
			Enabled:  cfg.Observability.Enabled,
			Level:    cfg.Observability.Level,
			Sampling: cfg.Observability.Sampling,
		}),
		layout.ObservabilityLogDir(),
		clk,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: start tracer: %v", errConfig, err)
	}

	watcher, err := config.NewWatcher(layout)
	if err != nil {
		return nil, fmt.Errorf("%w: start config watcher: %v", errConfig, err)
	}
	watcher.Start()

	disp := rpc.NewDispatcher()
	var tools []rpc.ToolSpec
	tools = append(tools, rpc.RegisterTaskMethods(disp, sup)...)
	tools = append(tools, rpc.RegisterVaultMethods(disp, v)...)
	tools = append(tools, rpc.RegisterScannerMethods(disp, sc)...)
	tools = append(tools, rpc.RegisterCausalMethods(disp, store)...)

	return &runtime{
		layout:     layout,
		cfg:        cfg,
		clk:        clk,
		vault:      v,
		causal:     store,
		permission: perm,
		scanner:    sc,
		supervisor: sup,
		tracer:     tr,
		watcher:    watcher,
		dispatcher: disp,
		tools:      tools,
	}, nil
}

func (r *runtime) close() {
	if r.watcher != nil {
		r.watcher.Stop()
	}
	if r.tracer != nil {
		r.tracer.Close()
	}
	if r.causal != nil {
		r.causal.Close()
	}
}

// loadOrCreateKeySeed reads the per-install vault key seed from keyFile
// (defaulting to <workspace>/storage/vault.key), generating and persisting
// a fresh one with 0600 permissions on first run.
func loadOrCreateKeySeed(layout *workspace.Layout, keyFile string) ([]byte, error) {
	if keyFile == "" {
		keyFile = filepath.Join(layout.Storage, "vault.key")
	}

	if data, err := os.ReadFile(keyFile); err == nil {
		return base64.StdEncoding.DecodeString(string(data))
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	seed := make([]byte, keySeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(seed)
	if err := os.WriteFile(keyFile, []byte(encoded), 0o600); err != nil {
		return nil, err
	}
	return seed, nil
}
