// Escrowd: single-program settlement node for rock-paper-scissors wagers.
//
// Escrowd runs the wager escrow program behind a JSON-RPC interface. It
// custodies per-game vaults, pays out winners minus the protocol fee, and
// persists its account state in BadgerDB.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kevredlabs/ro-sham-bo/pkg/accounts"
	"github.com/kevredlabs/ro-sham-bo/pkg/metrics"
	"github.com/kevredlabs/ro-sham-bo/pkg/programs/escrow"
	"github.com/kevredlabs/ro-sham-bo/pkg/programs/system"
	"github.com/kevredlabs/ro-sham-bo/pkg/rpc"
	"github.com/kevredlabs/ro-sham-bo/pkg/runtime"
	"github.com/kevredlabs/ro-sham-bo/pkg/snapshot"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildTime = "unknown"
)

// Configuration flags
var (
	configFile    = flag.String("config", "/root/.config/escrowd/config.json", "Path to JSON configuration file")
	dataDir       = flag.String("data-dir", "", "Data directory for the account store (\":memory:\" for in-memory)")
	rpcAddr       = flag.String("rpc-addr", "", "JSON-RPC server listen address")
	authority     = flag.String("authority", "", "Base58 pubkey allowed to resolve and refund games (required)")
	treasury      = flag.String("treasury", "", "Base58 pubkey that receives protocol fees (required)")
	faucet        = flag.Bool("faucet", false, "Enable the requestAirdrop method (development only)")
	skipSigVerify = flag.Bool("skip-sig-verify", false, "Skip transaction signature verification (unsafe)")
	snapshotPath  = flag.String("snapshot", "", "Import an account snapshot before serving")
	snapshotExit  = flag.String("snapshot-on-exit", "", "Export an account snapshot during shutdown")
	enableMetrics = flag.Bool("enable-metrics", false, "Enable Prometheus metrics server")
	metricsAddr   = flag.String("metrics-addr", "", "Metrics server listen address")
	showVersion   = flag.Bool("version", false, "Print version and exit")
	showStats     = flag.Bool("stats", false, "Show statistics periodically")
)

// Config represents the JSON configuration file structure.
type Config struct {
	Program ProgramConfig `json:"program"`
	RPC     RPCConfig     `json:"rpc"`
	Metrics MetricsConfig `json:"metrics"`
	General GeneralConfig `json:"general"`
}

// ProgramConfig holds the injected escrow program identities.
type ProgramConfig struct {
	Authority string `json:"authority"`
	Treasury  string `json:"treasury"`
}

// RPCConfig holds JSON-RPC server settings.
type RPCConfig struct {
	Addr   string `json:"addr"`
	Faucet bool   `json:"faucet"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// GeneralConfig holds general application settings.
type GeneralConfig struct {
	DataDir          string `json:"data_dir"`
	VerifySignatures bool   `json:"verify_signatures"`
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Program: ProgramConfig{},
		RPC: RPCConfig{
			Addr:   ":8899",
			Faucet: false,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		General: GeneralConfig{
			DataDir:          "/var/lib/escrowd",
			VerifySignatures: true,
		},
	}
}

// loadConfig loads configuration from the specified JSON file.
// If the file doesn't exist, it returns the default configuration.
func loadConfig(configPath string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults", configPath)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	log.Printf("Loaded configuration from %s", configPath)
	return cfg, nil
}

// applyConfigWithCLIOverrides applies config values and lets CLI flags
// override them when explicitly set.
func applyConfigWithCLIOverrides(cfg Config) {
	flagSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagSet[f.Name] = true
	})

	if !flagSet["authority"] {
		*authority = cfg.Program.Authority
	}
	if !flagSet["treasury"] {
		*treasury = cfg.Program.Treasury
	}
	if !flagSet["rpc-addr"] {
		*rpcAddr = cfg.RPC.Addr
	}
	if !flagSet["faucet"] {
		*faucet = cfg.RPC.Faucet
	}
	if !flagSet["enable-metrics"] {
		*enableMetrics = cfg.Metrics.Enabled
	}
	if !flagSet["metrics-addr"] {
		*metricsAddr = cfg.Metrics.Addr
	}
	if !flagSet["data-dir"] {
		*dataDir = cfg.General.DataDir
	}
	if !flagSet["skip-sig-verify"] {
		*skipSigVerify = !cfg.General.VerifySignatures
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Escrowd %s (%s)\n", Version, GitCommit)
		fmt.Printf("Build time: %s\n", BuildTime)
		fmt.Println()
		fmt.Println("Settlement node for rock-paper-scissors wager escrows")
		fmt.Println("https://github.com/kevredlabs/ro-sham-bo")
		os.Exit(0)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting Escrowd %s", Version)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyConfigWithCLIOverrides(cfg)

	if *authority == "" || *treasury == "" {
		log.Fatal("Both -authority and -treasury must be set (flag or config file)")
	}
	authorityKey, err := types.PubkeyFromBase58(*authority)
	if err != nil {
		log.Fatalf("Invalid authority pubkey: %v", err)
	}
	treasuryKey, err := types.PubkeyFromBase58(*treasury)
	if err != nil {
		log.Fatalf("Invalid treasury pubkey: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize the account store
	var store accounts.Store
	if *dataDir == ":memory:" {
		store = accounts.NewMemoryStore()
		log.Println("Using in-memory account store (for testing)")
	} else {
		storePath := *dataDir + "/accounts"
		if err := os.MkdirAll(storePath, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		store, err = accounts.NewBadgerStore(storePath)
		if err != nil {
			log.Fatalf("Failed to open account store: %v", err)
		}
		log.Printf("Opened BadgerDB account store at %s", storePath)
	}
	defer store.Close()

	// Register programs
	escrowProgram := escrow.New(authorityKey, treasuryKey)
	registry := runtime.NewProgramRegistry()
	registry.Register(types.SystemProgramID, "system", system.New())
	registry.Register(types.EscrowProgramID, "escrow", escrowProgram)
	log.Printf("Registered %d programs", len(registry.List()))

	executor := runtime.NewExecutor(store, registry)
	executor.VerifySignatures = !*skipSigVerify

	handlers := rpc.NewHandlers(store, executor, escrowProgram)
	handlers.Faucet = *faucet

	// Restore state from a snapshot if requested
	if *snapshotPath != "" {
		meta, err := snapshot.Import(store, *snapshotPath)
		if err != nil {
			log.Fatalf("Failed to import snapshot %s: %v", *snapshotPath, err)
		}
		handlers.SetSlot(meta.Slot)
		log.Printf("Imported snapshot %s: %d accounts at slot %d", *snapshotPath, meta.Count, meta.Slot)
	}

	log.Println()
	log.Println("Configuration:")
	log.Printf("  Config file:       %s", *configFile)
	log.Printf("  Data directory:    %s", *dataDir)
	log.Printf("  RPC address:       %s", *rpcAddr)
	log.Printf("  Resolver:          %s", authorityKey)
	log.Printf("  Treasury:          %s", treasuryKey)
	log.Printf("  Verify signatures: %v", !*skipSigVerify)
	log.Printf("  Faucet:            %v", *faucet)
	log.Println()

	if *skipSigVerify {
		log.Println("WARNING: signature verification is disabled (UNSAFE)")
	}
	if *faucet {
		log.Println("WARNING: faucet is enabled, do not expose this node publicly")
	}

	// Start metrics server if enabled
	var metricsServer *metrics.Server
	if *enableMetrics {
		collector := metrics.NewMetrics()
		handlers.SetMetrics(collector)
		metricsServer = metrics.NewServer(*metricsAddr, collector)
		if err := metricsServer.Start(); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
		log.Printf("Prometheus metrics server listening on %s", metricsServer.Addr())
	}

	// Start the JSON-RPC server
	serverConfig := rpc.DefaultServerConfig()
	serverConfig.Address = *rpcAddr
	serverConfig.Logger = log.Default()
	rpcServer := rpc.NewServer(serverConfig, handlers)

	serverDone := make(chan error, 1)
	go func() {
		log.Printf("JSON-RPC server listening on %s", *rpcAddr)
		serverDone <- rpcServer.Start(ctx)
	}()

	// Stats ticker
	var statsTicker *time.Ticker
	start := time.Now()
	if *showStats {
		statsTicker = time.NewTicker(30 * time.Second)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-statsTicker.C:
					log.Println()
					log.Println("=== Node Statistics ===")
					log.Printf("  Uptime:          %s", time.Since(start).Round(time.Second))
					log.Printf("  Current slot:    %d", handlers.Slot())
					log.Printf("  Accounts stored: %d", store.Count())
					log.Println("=======================")
					log.Println()
				}
			}
		}()
	}

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()

	case err := <-serverDone:
		if err != nil && err != context.Canceled {
			log.Printf("RPC server error: %v", err)
		}
	}

	if statsTicker != nil {
		statsTicker.Stop()
	}

	log.Println("Shutting down...")

	if err := rpcServer.Stop(); err != nil {
		log.Printf("Error stopping RPC server: %v", err)
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Printf("Error stopping metrics server: %v", err)
		}
		shutdownCancel()
	}

	// Export a snapshot of final state if requested
	if *snapshotExit != "" {
		meta, err := snapshot.Export(store, *snapshotExit, handlers.Slot())
		if err != nil {
			log.Printf("Failed to export snapshot: %v", err)
		} else {
			log.Printf("Exported snapshot %s: %d accounts at slot %d", *snapshotExit, meta.Count, meta.Slot)
		}
	}

	log.Println()
	log.Println("=== Final Statistics ===")
	log.Printf("  Total runtime:   %s", time.Since(start).Round(time.Second))
	log.Printf("  Final slot:      %d", handlers.Slot())
	log.Printf("  Accounts stored: %d", store.Count())
	log.Println("========================")
	log.Println("Escrowd stopped gracefully")
}
