package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds metadata server configuration
type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Coordinator CoordinatorConfig `json:"coordinator" yaml:"coordinator"`
	Store       StoreConfig       `json:"store" yaml:"store"`
	Transfer    TransferConfig    `json:"transfer" yaml:"transfer"`
	Gossip      GossipConfig      `json:"gossip" yaml:"gossip"`
	Logger      logger.Config     `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	ServerID string `json:"server_id" yaml:"server_id"`
	Hostname string `json:"hostname" yaml:"hostname"`
	HTTPPort int    `json:"http_port" yaml:"http_port"`
	RPCPort  int    `json:"rpc_port" yaml:"rpc_port"`
}

type CoordinatorConfig struct {
	// LeaderID is sent as masterId on join.
	LeaderID            string   `json:"leader_id" yaml:"leader_id"`
	Addrs               []string `json:"addrs" yaml:"addrs"`
	HeartbeatIntervalMS int      `json:"heartbeat_interval_ms" yaml:"heartbeat_interval_ms"`
	RequestTimeoutMS    int      `json:"request_timeout_ms" yaml:"request_timeout_ms"`
}

type StoreConfig struct {
	Backend   string `json:"backend" yaml:"backend"` // "memory", "badger"
	DataDir   string `json:"data_dir" yaml:"data_dir"`
	SlotCount int    `json:"slot_count" yaml:"slot_count"`
}

type TransferConfig struct {
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

type GossipConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Port    int      `json:"port" yaml:"port"`
	Seeds   []string `json:"seeds" yaml:"seeds"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Hostname: "127.0.0.1",
			HTTPPort: 9101,
			RPCPort:  7101,
		},
		Coordinator: CoordinatorConfig{
			LeaderID:            "coordinator-1",
			Addrs:               []string{"127.0.0.1:9000"},
			HeartbeatIntervalMS: 1000,
			RequestTimeoutMS:    2000,
		},
		Store: StoreConfig{
			Backend:   "memory",
			DataDir:   "./data/metaserver",
			SlotCount: 16384,
		},
		Transfer: TransferConfig{
			BatchSize: 256,
		},
		Gossip: GossipConfig{
			Port: 7947,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Validate rejects configurations the metadata server cannot run with.
func (c *Config) Validate() error {
	if c.Store.SlotCount <= 0 {
		return fmt.Errorf("store.slot_count must be positive")
	}
	switch c.Store.Backend {
	case "memory", "badger":
	default:
		return fmt.Errorf("store.backend %q is not one of memory, badger", c.Store.Backend)
	}
	return nil
}

// NodeID returns the configured server id, derived from host and port when empty.
func (c *Config) NodeID() string {
	if c.Server.ServerID != "" {
		return c.Server.ServerID
	}
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", host, c.Server.RPCPort)
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Hostname, c.Server.HTTPPort)
}

func (c *Config) RPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Hostname, c.Server.RPCPort)
}

func (c CoordinatorConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

func (c CoordinatorConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "metaserver", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	if err := parsedCfg.Validate(); err != nil {
		return nil, err
	}
	return parsedCfg, nil
}
