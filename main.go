package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cfg "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	cmtrpc "github.com/cometbft/cometbft/rpc/client/local"
	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/viper"

	"github.com/shipcheck/shipcheck/app"
	"github.com/shipcheck/shipcheck/config"
	"github.com/shipcheck/shipcheck/repository"
	"github.com/shipcheck/shipcheck/server"
	"github.com/shipcheck/shipcheck/srvreg"
)

var (
	homeDir  string
	httpPort string
)

func init() {
	flag.StringVar(&homeDir, "cmt-home", "", "Path to the CometBFT config directory (overrides COMET_HOME)")
	flag.StringVar(&httpPort, "http-port", "", "HTTP web server port (overrides HTTP_PORT)")
}

func main() {
	flag.Parse()

	appConfig := config.LoadConfig()
	if homeDir != "" {
		appConfig.CometHomeDir = homeDir
	}
	if httpPort != "" {
		appConfig.HTTPPort = httpPort
	}
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Println("=== Starting Shipcheck Warehouse Node ===")
	log.Printf("Node ID: %s", appConfig.NodeID)
	log.Printf("HTTP Port: %s", appConfig.HTTPPort)
	log.Printf("Audit Ledger Home: %s", appConfig.CometHomeDir)

	// Load CometBFT configuration for the audit ledger
	cometConfig := cfg.DefaultConfig()
	cometConfig.SetRoot(appConfig.CometHomeDir)
	viper.SetConfigFile(fmt.Sprintf("%s/%s", appConfig.CometHomeDir, "config/config.toml"))
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Reading config: %v", err)
	}
	if err := viper.Unmarshal(cometConfig); err != nil {
		log.Fatalf("Decoding config: %v", err)
	}
	if err := cometConfig.ValidateBasic(); err != nil {
		log.Fatalf("Invalid configuration data: %v", err)
	}

	// Connect to PostgreSQL
	repo := repository.NewRepository()
	log.Printf("Connecting to PostgreSQL: %s:%s/%s", appConfig.DatabaseHost, appConfig.DatabasePort, appConfig.DatabaseName)
	repo.ConnectDB(appConfig.GetDSN())

	// Badger storage for the audit ledger
	badgerPath := filepath.Join(appConfig.CometHomeDir, "badger")
	db, err := badger.Open(badger.DefaultOptions(badgerPath))
	if err != nil {
		log.Fatalf("Opening badger database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Fatalf("Closing badger database: %v", err)
		}
	}()

	// Create logger
	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(cometConfig.LogLevel, logger, cfg.DefaultLogLevel)
	if err != nil {
		log.Fatalf("Failed to parse log level: %v", err)
	}

	// ABCI audit ledger application
	abciApp := app.NewABCIApplication(db, logger)

	// Service registry with the warehouse API routes
	serviceRegistry := srvreg.NewServiceRegistry(repo, abciApp, logger)
	serviceRegistry.RegisterDefaultServices()

	// Load private validator
	pv := privval.LoadFilePV(
		cometConfig.PrivValidatorKeyFile(),
		cometConfig.PrivValidatorStateFile(),
	)

	// Load node key for P2P networking
	nodeKey, err := p2p.LoadNodeKey(cometConfig.NodeKeyFile())
	if err != nil {
		log.Fatalf("Failed to load node's key: %v", err)
	}

	// Initialize CometBFT node
	node, err := nm.NewNode(
		context.Background(),
		cometConfig,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(abciApp),
		nm.DefaultGenesisDocProviderFunc(cometConfig),
		cfg.DefaultDBProvider,
		nm.DefaultMetricsProvider(cometConfig.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("Creating CometBFT node: %v", err)
	}

	abciApp.SetNodeID(string(node.NodeInfo().ID()))
	logger.Info("Audit ledger node initialized", "node_id", string(node.NodeInfo().ID()))

	// RPC client for anchoring terminal inspections
	rpcClient := cmtrpc.New(node)
	repo.SetupRpcClient(rpcClient)

	logger.Info("Starting CometBFT node...")
	err = node.Start()
	if err != nil {
		log.Fatalf("Starting CometBFT node: %v", err)
	}
	defer func() {
		logger.Info("Stopping CometBFT node...")
		node.Stop()
		node.Wait()
	}()

	// Start web server
	logger.Info("Starting warehouse API server...")
	webserver, err := server.NewWebServer(appConfig.HTTPPort, logger, node, serviceRegistry, repo)
	if err != nil {
		log.Fatalf("Creating web server: %v", err)
	}

	err = webserver.Start()
	if err != nil {
		log.Fatalf("Starting HTTP server: %v", err)
	}

	// Background expiry of abandoned inspections
	expiryCtx, stopExpiry := context.WithCancel(context.Background())
	defer stopExpiry()
	go runExpiryLoop(expiryCtx, repo, appConfig.InspectionTTL, logger)

	logger.Info("=== Shipcheck Node Successfully Started ===")
	logger.Info("Warehouse HTTP API", "url", fmt.Sprintf("http://localhost:%s", appConfig.HTTPPort))
	logger.Info("Audit Ledger RPC", "url", fmt.Sprintf("http://localhost:%s", extractPortFromAddress(cometConfig.RPC.ListenAddress)))
	logger.Info("Node ID", "id", string(node.NodeInfo().ID()))
	logger.Info("Inspection TTL", "ttl", appConfig.InspectionTTL.String())

	// Wait for interrupt signal to gracefully shut down
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Received shutdown signal, shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err = webserver.Shutdown(ctx)
	if err != nil {
		logger.Error("Error shutting down HTTP web server", "err", err)
	}
	logger.Info("Shipcheck node gracefully stopped")
}

// runExpiryLoop periodically fails in_progress inspections older than ttl
func runExpiryLoop(ctx context.Context, repo *repository.Repository, ttl time.Duration, logger cmtlog.Logger) {
	interval := ttl / 24
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, repoErr := repo.ExpireStaleInspections(ttl)
			if repoErr != nil {
				logger.Error("Inspection expiry sweep failed", "error", repoErr.Detail)
				continue
			}
			if expired > 0 {
				logger.Info("Expired abandoned inspections", "count", expired)
			}
		}
	}
}

// extractPortFromAddress extracts the port from an address string
func extractPortFromAddress(address string) string {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == ':' {
			return address[i+1:]
		}
	}
	return ""
}
