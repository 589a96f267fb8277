package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mailboxchain/config"
	"mailboxchain/core"
	"mailboxchain/gateway"
	"mailboxchain/observability"
	"mailboxchain/observability/logging"
	"mailboxchain/rpc"
	"mailboxchain/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup("mailboxd", cfg.Env, logging.Options{FilePath: cfg.LogFile})

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		logger.Error("open storage", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	metrics := observability.NewMetrics()
	node, err := core.NewNode(db, logger, core.WithMetrics(metrics))
	if err != nil {
		logger.Error("start node", "err", err)
		os.Exit(1)
	}

	if err := bootstrap(node, cfg); err != nil {
		logger.Error("bootstrap modules", "err", err)
		os.Exit(1)
	}

	rpcServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           rpc.NewServer(node, logger, rpc.ServerConfig{AuthToken: cfg.RPCToken}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	gatewayServer := &http.Server{
		Addr: cfg.GatewayAddress,
		Handler: gateway.NewRouter(node, metrics, logger, gateway.Config{
			RatePerSecond: cfg.RateRPS,
			Burst:         cfg.Burst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("rpc listening", "addr", cfg.RPCAddress)
		errCh <- rpcServer.ListenAndServe()
	}()
	go func() {
		logger.Info("gateway listening", "addr", cfg.GatewayAddress)
		errCh <- gatewayServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rpcServer.Shutdown(ctx); err != nil {
		logger.Warn("rpc shutdown", "err", err)
	}
	if err := gatewayServer.Shutdown(ctx); err != nil {
		logger.Warn("gateway shutdown", "err", err)
	}
}

// openDatabase selects the storage backend: the in-memory store for the
// reserved ":memory:" data dir, LevelDB otherwise.
func openDatabase(dataDir string) (storage.Database, error) {
	if strings.TrimSpace(dataDir) == ":memory:" {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(dataDir)
}

// bootstrap initializes both modules at first boot with the configured owner
// (explicit GenesisOwner or the OwnerKey-derived account). Re-runs are
// no-ops once the singletons exist.
func bootstrap(node *core.Node, cfg *config.Config) error {
	ownerAddr, err := cfg.OwnerAddress()
	if err != nil {
		return err
	}
	if ownerAddr.IsZero() {
		return nil
	}
	owner := ownerAddr.Raw()
	if _, ok := node.MailerState(); !ok {
		if err := node.MailerInitialize(owner, cfg.UnitDenom); err != nil {
			return err
		}
	}
	if _, ok := node.ServiceState(); !ok {
		if err := node.ServiceInitialize(owner, cfg.UnitDenom); err != nil {
			return err
		}
	}
	return nil
}
