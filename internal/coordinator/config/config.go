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

// Config holds coordinator configuration
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Cluster    ClusterConfig    `json:"cluster" yaml:"cluster"`
	Membership MembershipConfig `json:"membership" yaml:"membership"`
	Migration  MigrationConfig  `json:"migration" yaml:"migration"`
	Snapshot   SnapshotConfig   `json:"snapshot" yaml:"snapshot"`
	Redis      RedisConfig      `json:"redis" yaml:"redis"`
	Gossip     GossipConfig     `json:"gossip" yaml:"gossip"`
	IDGen      IDGenConfig      `json:"idgen" yaml:"idgen"`
	Logger     logger.Config    `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	ServerID      string `json:"server_id" yaml:"server_id"`
	Addr          string `json:"addr" yaml:"addr"`
	AdvertiseAddr string `json:"advertise_addr" yaml:"advertise_addr"`
}

type ClusterConfig struct {
	// LeaderID is the manually designated leader; empty means this server.
	LeaderID   string            `json:"leader_id" yaml:"leader_id"`
	LeaderAddr string            `json:"leader_addr" yaml:"leader_addr"`
	SlotCount  int               `json:"slot_count" yaml:"slot_count"`
	Bootstrap  []BootstrapServer `json:"bootstrap" yaml:"bootstrap"`
}

// BootstrapServer seeds the registry and slot map on first start.
type BootstrapServer struct {
	ServerID string   `json:"server_id" yaml:"server_id"`
	HTTPAddr string   `json:"http_addr" yaml:"http_addr"`
	RPCAddr  string   `json:"rpc_addr" yaml:"rpc_addr"`
	Slots    []string `json:"slots" yaml:"slots"`
}

type MembershipConfig struct {
	SweepIntervalMS int `json:"sweep_interval_ms" yaml:"sweep_interval_ms"`
	SuspectAfterMS  int `json:"suspect_after_ms" yaml:"suspect_after_ms"`
	GoneAfterMS     int `json:"gone_after_ms" yaml:"gone_after_ms"`
}

type MigrationConfig struct {
	Workers         int `json:"workers" yaml:"workers"`
	QueueSize       int `json:"queue_size" yaml:"queue_size"`
	MaxRetries      int `json:"max_retries" yaml:"max_retries"`
	ChecksumRetries int `json:"checksum_retries" yaml:"checksum_retries"`
	BackoffMS       int `json:"backoff_ms" yaml:"backoff_ms"`
	RPCTimeoutMS    int `json:"rpc_timeout_ms" yaml:"rpc_timeout_ms"`
	JobHistory      int `json:"job_history" yaml:"job_history"`

	// Maximum dwell time per state.
	RequestedTimeoutMS    int `json:"requested_timeout_ms" yaml:"requested_timeout_ms"`
	SourceLockedTimeoutMS int `json:"source_locked_timeout_ms" yaml:"source_locked_timeout_ms"`
	CopyingTimeoutMS      int `json:"copying_timeout_ms" yaml:"copying_timeout_ms"`
	VerifyingTimeoutMS    int `json:"verifying_timeout_ms" yaml:"verifying_timeout_ms"`
	CommittingTimeoutMS   int `json:"committing_timeout_ms" yaml:"committing_timeout_ms"`
}

type SnapshotConfig struct {
	Backend   string `json:"backend" yaml:"backend"` // "memory", "redis", "badger"
	Key       string `json:"key" yaml:"key"`
	BadgerDir string `json:"badger_dir" yaml:"badger_dir"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type GossipConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	BindAddr string   `json:"bind_addr" yaml:"bind_addr"`
	Port     int      `json:"port" yaml:"port"`
	Seeds    []string `json:"seeds" yaml:"seeds"`
}

type IDGenConfig struct {
	NodeID        int64 `json:"node_id" yaml:"node_id"`
	UseRedisClock bool  `json:"use_redis_clock" yaml:"use_redis_clock"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ServerID: "coordinator-1",
			Addr:     ":9000",
		},
		Cluster: ClusterConfig{
			SlotCount: 16384,
		},
		Membership: MembershipConfig{
			SweepIntervalMS: 1000,
			SuspectAfterMS:  5000,
			GoneAfterMS:     30000,
		},
		Migration: MigrationConfig{
			Workers:               4,
			QueueSize:             64,
			MaxRetries:            3,
			ChecksumRetries:       2,
			BackoffMS:             200,
			RPCTimeoutMS:          10000,
			JobHistory:            1000,
			RequestedTimeoutMS:    300000,
			SourceLockedTimeoutMS: 10000,
			CopyingTimeoutMS:      600000,
			VerifyingTimeoutMS:    120000,
			CommittingTimeoutMS:   10000,
		},
		Snapshot: SnapshotConfig{
			Backend:   "memory",
			Key:       "slotcoord:snapshot",
			BadgerDir: "./data/coordinator",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Gossip: GossipConfig{
			BindAddr: "0.0.0.0",
			Port:     7946,
		},
		IDGen: IDGenConfig{
			NodeID: 1,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Validate rejects configurations the coordinator cannot run with.
func (c *Config) Validate() error {
	if c.Server.ServerID == "" {
		return fmt.Errorf("server.server_id is required")
	}
	if c.Cluster.SlotCount <= 0 {
		return fmt.Errorf("cluster.slot_count must be positive")
	}
	if c.Membership.GoneAfterMS <= c.Membership.SuspectAfterMS {
		return fmt.Errorf("membership.gone_after_ms must exceed suspect_after_ms")
	}
	if c.Migration.RequestedTimeoutMS <= 0 {
		return fmt.Errorf("migration.requested_timeout_ms must be positive")
	}
	switch c.Snapshot.Backend {
	case "memory", "redis", "badger":
	default:
		return fmt.Errorf("snapshot.backend %q is not one of memory, redis, badger", c.Snapshot.Backend)
	}
	return nil
}

// IsLeader reports whether this process is the designated leader.
func (c *Config) IsLeader() bool {
	return c.Cluster.LeaderID == "" || c.Cluster.LeaderID == c.Server.ServerID
}

// LeaderAddr returns the address followers redirect to.
func (c *Config) LeaderAddr() string {
	if c.IsLeader() {
		if c.Server.AdvertiseAddr != "" {
			return c.Server.AdvertiseAddr
		}
		return c.Server.Addr
	}
	return c.Cluster.LeaderAddr
}

func (c *Config) LeaderID() string {
	if c.Cluster.LeaderID == "" {
		return c.Server.ServerID
	}
	return c.Cluster.LeaderID
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (m MembershipConfig) SweepInterval() time.Duration { return ms(m.SweepIntervalMS) }
func (m MembershipConfig) SuspectAfter() time.Duration  { return ms(m.SuspectAfterMS) }
func (m MembershipConfig) GoneAfter() time.Duration     { return ms(m.GoneAfterMS) }

func (m MigrationConfig) Backoff() time.Duration    { return ms(m.BackoffMS) }
func (m MigrationConfig) RPCTimeout() time.Duration { return ms(m.RPCTimeoutMS) }

// StateTimeout returns the maximum dwell time for a state name, 0 if unbounded.
func (m MigrationConfig) StateTimeout(state string) time.Duration {
	switch state {
	case "requested":
		return ms(m.RequestedTimeoutMS)
	case "source_locked":
		return ms(m.SourceLockedTimeoutMS)
	case "copying":
		return ms(m.CopyingTimeoutMS)
	case "verifying":
		return ms(m.VerifyingTimeoutMS)
	case "committing":
		return ms(m.CommittingTimeoutMS)
	default:
		return 0
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "coordinator", "config", env+".yaml")
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

// MustLoad loads configuration or exits on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
