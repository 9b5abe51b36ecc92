// Package config provides configuration loading for quotestream using Viper.
// Configuration is loaded from an optional YAML file with automatic
// environment variable binding, then overridden by command-line flags in
// cmd/quotestream-server and cmd/quotestream-client.
//
// Environment variables use the QUOTESTREAM_ prefix and underscore-separated
// keys: QUOTESTREAM_SERVER_TCP_BIND -> server.tcp_bind, and so on.
package config

// ClusterMode selects how this server node participates in ticker-list sync.
type ClusterMode string

const (
	ClusterModeStandalone ClusterMode = "standalone"
	ClusterModePrimary    ClusterMode = "primary"
	ClusterModeSecondary  ClusterMode = "secondary"
)

// LoggingConfig controls structured logging setup.
type LoggingConfig struct {
	Level       string            `yaml:"level"        mapstructure:"level"`
	JSON        bool              `yaml:"json"         mapstructure:"json"`
	IncludePID  bool              `yaml:"include_pid"  mapstructure:"include_pid"`
	ExtraFields map[string]string `yaml:"extra_fields" mapstructure:"extra_fields"`
}

// TickersConfig selects the ticker universe a node tracks. File and Text are
// mutually exclusive; when neither is set the embedded default list is used.
type TickersConfig struct {
	File string `yaml:"file" mapstructure:"file"`
	Text string `yaml:"text" mapstructure:"text"`
}

// APIConfig controls the read-only management HTTP API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// DatabaseConfig controls the session ledger.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ClusterConfig controls ticker-list synchronization between nodes.
type ClusterConfig struct {
	Mode         ClusterMode `yaml:"mode"          mapstructure:"mode"`
	PrimaryURL   string      `yaml:"primary_url"   mapstructure:"primary_url"`
	SharedSecret string      `yaml:"shared_secret" mapstructure:"shared_secret"`
	NodeID       string      `yaml:"node_id"       mapstructure:"node_id"`
	SyncInterval string      `yaml:"sync_interval" mapstructure:"sync_interval"`
	SyncTimeout  string      `yaml:"sync_timeout"  mapstructure:"sync_timeout"`
}

// ServerConfig is the fully resolved configuration for the quotestream server.
type ServerConfig struct {
	TCPBind string         `yaml:"tcp_bind" mapstructure:"tcp_bind"`
	UDPBind string         `yaml:"udp_bind" mapstructure:"udp_bind"`
	Tickers TickersConfig  `yaml:"tickers"  mapstructure:"tickers"`
	Logging LoggingConfig  `yaml:"logging"  mapstructure:"logging"`
	API     APIConfig      `yaml:"api"      mapstructure:"api"`
	DB      DatabaseConfig `yaml:"database" mapstructure:"database"`
	Cluster ClusterConfig  `yaml:"cluster"  mapstructure:"cluster"`
}

// ClientConfig is the fully resolved configuration for the quotestream client.
type ClientConfig struct {
	Server  string        `yaml:"server"   mapstructure:"server"`
	UDPPort int           `yaml:"udp_port" mapstructure:"udp_port"`
	BindIP  string        `yaml:"bind_ip"  mapstructure:"bind_ip"`
	Tickers TickersConfig `yaml:"tickers"  mapstructure:"tickers"`
	Logging LoggingConfig `yaml:"logging"  mapstructure:"logging"`
}
