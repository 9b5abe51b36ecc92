package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/hydrafeed/quotestream/internal/config"
	"github.com/hydrafeed/quotestream/internal/logging"
	"github.com/hydrafeed/quotestream/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values, applied over the loaded
// config file / environment without persisting back to it.
type cliFlags struct {
	configPath     string
	tcpBind        string
	udpBind        string
	tickersFile    string
	tickersText    string
	dbPath         string
	apiEnabled     bool
	apiHost        string
	apiPort        int
	apiKey         string
	jsonLogs       bool
	debug          bool
	clusterMode    string
	clusterPrimary string
	clusterSecret  string
	clusterNodeID  string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&f.tcpBind, "tcp-bind", "", "Override TCP control bind address")
	flag.StringVar(&f.udpBind, "udp-bind", "", "Override shared UDP socket bind address")
	flag.StringVar(&f.tickersFile, "tickers-file", "", "Path to a newline-delimited ticker list")
	flag.StringVar(&f.tickersText, "tickers", "", "Inline comma-separated ticker list")
	flag.StringVar(&f.dbPath, "db", "", "Path to the SQLite session ledger (default quotestream.db)")
	flag.BoolVar(&f.apiEnabled, "api", false, "Enable the read-only management HTTP API")
	flag.StringVar(&f.apiHost, "api-host", "", "Management API bind host")
	flag.IntVar(&f.apiPort, "api-port", 0, "Management API bind port")
	flag.StringVar(&f.apiKey, "api-key", "", "Require X-API-Key on every management API request")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&f.clusterMode, "cluster-mode", "", "Cluster mode: standalone, primary, or secondary")
	flag.StringVar(&f.clusterPrimary, "cluster-primary-url", "", "Primary node URL for secondary mode")
	flag.StringVar(&f.clusterSecret, "cluster-secret", "", "Shared secret for cluster authentication")
	flag.StringVar(&f.clusterNodeID, "cluster-node-id", "", "Unique node ID (auto-generated if empty)")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.ServerConfig, f cliFlags) {
	if f.tcpBind != "" {
		cfg.TCPBind = f.tcpBind
	}
	if f.udpBind != "" {
		cfg.UDPBind = f.udpBind
	}
	if f.tickersFile != "" {
		cfg.Tickers.File = f.tickersFile
		cfg.Tickers.Text = ""
	}
	if f.tickersText != "" {
		cfg.Tickers.Text = f.tickersText
		cfg.Tickers.File = ""
	}
	if f.dbPath != "" {
		cfg.DB.Path = f.dbPath
	}
	if f.apiEnabled {
		cfg.API.Enabled = true
	}
	if f.apiHost != "" {
		cfg.API.Host = f.apiHost
	}
	if f.apiPort != 0 {
		cfg.API.Port = f.apiPort
	}
	if f.apiKey != "" {
		cfg.API.APIKey = f.apiKey
	}
	if f.jsonLogs {
		cfg.Logging.JSON = true
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
	if f.clusterMode != "" {
		cfg.Cluster.Mode = config.ClusterMode(f.clusterMode)
	}
	if f.clusterPrimary != "" {
		cfg.Cluster.PrimaryURL = f.clusterPrimary
	}
	if f.clusterSecret != "" {
		cfg.Cluster.SharedSecret = f.clusterSecret
	}
	if f.clusterNodeID != "" {
		cfg.Cluster.NodeID = f.clusterNodeID
	}
	if cfg.Cluster.NodeID == "" {
		cfg.Cluster.NodeID = uuid.New().String()[:8]
	}
}

func run() error {
	flags := parseFlags()
	if flags.tickersFile != "" && flags.tickersText != "" {
		return fmt.Errorf("--tickers-file and --tickers are mutually exclusive")
	}

	cfg, err := config.LoadServerConfig(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:       cfg.Logging.Level,
		JSON:        cfg.Logging.JSON,
		IncludePID:  cfg.Logging.IncludePID,
		ExtraFields: cfg.Logging.ExtraFields,
	})
	logger.Info("quotestream-server starting",
		"tcp_bind", cfg.TCPBind,
		"udp_bind", cfg.UDPBind,
		"cluster_mode", cfg.Cluster.Mode,
		"node_id", cfg.Cluster.NodeID,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := server.NewRunner(logger)
	if err := runner.Run(ctx, cfg); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	return nil
}
