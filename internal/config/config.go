package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
)

// initConfig sets up the config loader with defaults, env binding, and an
// optional config file.
func initConfig(configPath, envPrefix string, setDefaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// LoadServerConfig resolves the server configuration from an optional YAML
// file plus QUOTESTREAM_ environment variables, applying defaults for
// anything left unset.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v, err := initConfig(configPath, "QUOTESTREAM", setServerDefaults)
	if err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		TCPBind: v.GetString("server.tcp_bind"),
		UDPBind: v.GetString("server.udp_bind"),
		Tickers: TickersConfig{
			File: v.GetString("tickers.file"),
			Text: v.GetString("tickers.text"),
		},
		Logging: LoggingConfig{
			Level:       strings.ToUpper(v.GetString("logging.level")),
			JSON:        v.GetBool("logging.json"),
			IncludePID:  v.GetBool("logging.include_pid"),
			ExtraFields: v.GetStringMapString("logging.extra_fields"),
		},
		API: APIConfig{
			Enabled: v.GetBool("api.enabled"),
			Host:    v.GetString("api.host"),
			Port:    v.GetInt("api.port"),
			APIKey:  v.GetString("api.api_key"),
		},
		DB: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Cluster: ClusterConfig{
			Mode:         ClusterMode(v.GetString("cluster.mode")),
			PrimaryURL:   v.GetString("cluster.primary_url"),
			SharedSecret: v.GetString("cluster.shared_secret"),
			NodeID:       v.GetString("cluster.node_id"),
			SyncInterval: v.GetString("cluster.sync_interval"),
			SyncTimeout:  v.GetString("cluster.sync_timeout"),
		},
	}

	if err := normalizeServerConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("server.tcp_bind", "0.0.0.0:5555")
	v.SetDefault("server.udp_bind", "0.0.0.0:5556")

	v.SetDefault("tickers.file", "")
	v.SetDefault("tickers.text", "")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8090)
	v.SetDefault("api.api_key", "")

	v.SetDefault("database.path", "quotestream.db")

	v.SetDefault("cluster.mode", string(ClusterModeStandalone))
	v.SetDefault("cluster.primary_url", "")
	v.SetDefault("cluster.shared_secret", "")
	v.SetDefault("cluster.node_id", "")
	v.SetDefault("cluster.sync_interval", "30s")
	v.SetDefault("cluster.sync_timeout", "10s")
}

func normalizeServerConfig(cfg *ServerConfig) error {
	if cfg.Tickers.File != "" && cfg.Tickers.Text != "" {
		return errors.New("tickers.file and tickers.text are mutually exclusive")
	}

	if _, _, err := net.SplitHostPort(cfg.TCPBind); err != nil {
		return fmt.Errorf("invalid server.tcp_bind %q: %w", cfg.TCPBind, err)
	}
	if _, _, err := net.SplitHostPort(cfg.UDPBind); err != nil {
		return fmt.Errorf("invalid server.udp_bind %q: %w", cfg.UDPBind, err)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	if cfg.DB.Path == "" {
		cfg.DB.Path = "quotestream.db"
	}

	switch cfg.Cluster.Mode {
	case "", ClusterModeStandalone, ClusterModePrimary:
	case ClusterModeSecondary:
		if cfg.Cluster.PrimaryURL == "" {
			return errors.New("cluster.primary_url is required in secondary mode")
		}
	default:
		return fmt.Errorf("invalid cluster.mode %q", cfg.Cluster.Mode)
	}

	if cfg.API.Enabled {
		if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
			return errors.New("api.port must be 1..65535")
		}
	}

	return nil
}

// LoadClientConfig resolves the client configuration from an optional YAML
// file plus QUOTESTREAM_ environment variables.
func LoadClientConfig(configPath string) (*ClientConfig, error) {
	v, err := initConfig(configPath, "QUOTESTREAM", setClientDefaults)
	if err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		Server:  v.GetString("server"),
		UDPPort: v.GetInt("udp_port"),
		BindIP:  v.GetString("bind_ip"),
		Tickers: TickersConfig{
			File: v.GetString("tickers.file"),
			Text: v.GetString("tickers.text"),
		},
		Logging: LoggingConfig{
			Level:       strings.ToUpper(v.GetString("logging.level")),
			JSON:        v.GetBool("logging.json"),
			IncludePID:  v.GetBool("logging.include_pid"),
			ExtraFields: v.GetStringMapString("logging.extra_fields"),
		},
	}

	if err := normalizeClientConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("server", "")
	v.SetDefault("udp_port", 0)
	v.SetDefault("bind_ip", "127.0.0.1")
	v.SetDefault("tickers.file", "")
	v.SetDefault("tickers.text", "")
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})
}

func normalizeClientConfig(cfg *ClientConfig) error {
	if cfg.Tickers.File != "" && cfg.Tickers.Text != "" {
		return errors.New("tickers.file and tickers.text are mutually exclusive")
	}
	if cfg.Tickers.File == "" && cfg.Tickers.Text == "" {
		return errors.New("exactly one of tickers.file or tickers.text is required")
	}
	if cfg.BindIP == "" {
		cfg.BindIP = "127.0.0.1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}
	if cfg.UDPPort <= 0 || cfg.UDPPort > 65535 {
		return errors.New("udp_port must be 1..65535")
	}
	if cfg.Server == "" {
		return errors.New("server is required")
	}
	return nil
}
