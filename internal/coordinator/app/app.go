package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	gossipHandler "github.com/anthanhphan/go-slot-coordinator/internal/coordinator/adapter/inbound/gossip"
	httpHandler "github.com/anthanhphan/go-slot-coordinator/internal/coordinator/adapter/inbound/http"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/adapter/outbound/dataplane"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/adapter/outbound/snapshot"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/port"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/service"
	"github.com/anthanhphan/go-slot-coordinator/pkg/gossip"
	"github.com/anthanhphan/go-slot-coordinator/pkg/idgen"
	"github.com/anthanhphan/gosdk/logger"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg            *config.Config
	server         *httpHandler.Server
	coordinator    *service.CoordinatorImpl
	dataplane      *dataplane.GrpcAdapter
	gossip         *gossip.Adapter
	redis          *redis.Client
	closers        []func() error
	backgroundStop context.CancelFunc
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	a := &App{cfg: cfg}

	// 3. Redis, shared by the snapshot store and the id clock
	if cfg.Snapshot.Backend == "redis" || cfg.IDGen.UseRedisClock {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, a.redis.Close)
	}

	// 4. Job ids
	var clock idgen.Clock = idgen.SystemClock{}
	if cfg.IDGen.UseRedisClock {
		clock = idgen.NewRedisClock(a.redis, time.Second)
	}
	ids, err := idgen.New(cfg.IDGen.NodeID, clock)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to init id generator: %w", err)
	}

	// 5. Snapshot store
	store, err := a.openSnapshotStore()
	if err != nil {
		a.close()
		return nil, err
	}

	// 6. Gossip: address discovery now, liveness events once the coordinator exists
	var addrs port.AddressBook
	if cfg.Gossip.Enabled {
		a.gossip, err = gossip.NewAdapter(gossip.Config{
			NodeName: cfg.Server.ServerID,
			BindAddr: cfg.Gossip.BindAddr,
			BindPort: cfg.Gossip.Port,
			Meta: gossip.Meta{
				ServerID: cfg.Server.ServerID,
				HTTPAddr: advertiseAddr(cfg),
				Role:     "coordinator",
			},
		}, nil)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to init gossip: %w", err)
		}
		addrs = a.gossip
	}

	// 7. Data plane client and coordinator
	a.dataplane = dataplane.NewGrpcAdapter()
	a.closers = append(a.closers, func() error {
		a.dataplane.Close()
		return nil
	})
	a.coordinator = service.NewCoordinatorService(cfg, a.dataplane, store, ids, addrs)
	if a.gossip != nil {
		a.gossip.SetListener(gossipHandler.NewListener(a.coordinator))
	}

	restoreCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.coordinator.Restore(restoreCtx); err != nil {
		a.coordinator.Close()
		a.close()
		return nil, fmt.Errorf("failed to restore coordinator state: %w", err)
	}

	// 8. REST server
	a.server = httpHandler.NewServer(cfg, a.coordinator)
	return a, nil
}

func (a *App) openSnapshotStore() (port.SnapshotStore, error) {
	switch a.cfg.Snapshot.Backend {
	case "redis":
		return snapshot.NewRedisStore(a.redis, a.cfg.Snapshot.Key), nil
	case "badger":
		if err := os.MkdirAll(a.cfg.Snapshot.BadgerDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
		}
		store, err := snapshot.NewBadgerStore(a.cfg.Snapshot.BadgerDir, a.cfg.Snapshot.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return snapshot.NewMemoryStore(), nil
	}
}

func (a *App) Run() error {
	// Start Gossip
	if a.gossip != nil && len(a.cfg.Gossip.Seeds) > 0 {
		var joinErr error
		for i := 0; i < 5; i++ {
			joinErr = a.gossip.Join(a.cfg.Gossip.Seeds)
			if joinErr == nil {
				break
			}
			logger.Warnw("Failed to join gossip cluster, retrying...", "attempt", i+1, "error", joinErr.Error())
			time.Sleep(2 * time.Second)
		}
		if joinErr != nil {
			logger.Errorw("Failed to join gossip cluster after retries", "error", joinErr.Error())
		}
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	a.backgroundStop = cancel
	go a.coordinator.StartSweeper(bgCtx, a.cfg.Membership.SweepInterval())

	leaderID, leaderAddr := a.coordinator.Leader()
	logger.Infow("Coordinator starting",
		"id", a.cfg.Server.ServerID,
		"addr", a.cfg.Server.Addr,
		"leader_id", leaderID,
		"leader_addr", leaderAddr,
		"slot_count", a.cfg.Cluster.SlotCount,
		"snapshot", a.cfg.Snapshot.Backend)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		if !errors.Is(err, net.ErrClosed) && !strings.Contains(err.Error(), "use of closed network connection") {
			runErr = fmt.Errorf("HTTP server failed: %w", err)
			logger.Errorw("Coordinator HTTP server exited unexpectedly", "error", err.Error())
		}
	}

	logger.Info("Shutting down coordinator")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := a.server.Stop(shutdownCtx); err != nil {
		logger.Warnw("HTTP server shutdown failed", "error", err.Error())
	}
	a.backgroundStop()
	a.coordinator.Close()
	if a.gossip != nil {
		if err := a.gossip.Leave(); err != nil {
			logger.Warnw("Gossip leave failed", "error", err.Error())
		}
	}
	a.close()

	return runErr
}

// close releases stores and clients in reverse order of creation.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnw("Close failed", "error", err.Error())
		}
	}
	a.closers = nil
}

func advertiseAddr(cfg *config.Config) string {
	if cfg.Server.AdvertiseAddr != "" {
		return cfg.Server.AdvertiseAddr
	}
	return cfg.Server.Addr
}
