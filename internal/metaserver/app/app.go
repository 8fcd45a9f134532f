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

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	grpcHandler "github.com/anthanhphan/go-slot-coordinator/internal/metaserver/adapter/inbound/grpc"
	httpHandler "github.com/anthanhphan/go-slot-coordinator/internal/metaserver/adapter/inbound/http"
	coordinatorClient "github.com/anthanhphan/go-slot-coordinator/internal/metaserver/adapter/outbound/coordinator"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/adapter/outbound/peer"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/adapter/outbound/repository"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/port"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/service"
	"github.com/anthanhphan/go-slot-coordinator/pkg/gossip"
	"github.com/anthanhphan/gosdk/logger"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg            *config.Config
	grpcServer     *grpc.Server
	health         *health.Server
	httpServer     *httpHandler.Server
	gossip         *gossip.Adapter
	agent          *coordinatorClient.Client
	peer           *peer.GrpcPeer
	service        *service.MetadataServiceImpl
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

	// 3. Record store
	repo, err := openRepository(cfg.Store)
	if err != nil {
		return nil, err
	}

	// 4. Peer client used to push records to migration destinations
	peerClient := peer.NewGrpcPeer(cfg.Transfer.BatchSize)
	svc := service.NewMetadataService(repo, peerClient, cfg.Store.SlotCount)
	if err := svc.Restore(context.Background()); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("failed to restore metadata service: %w", err)
	}

	// 5. gRPC data plane
	maxMsgSize := 64 * 1024 * 1024
	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	healthServer := grpcHandler.Register(grpcServer, svc)

	nodeID := cfg.NodeID()
	a := &App{
		cfg:        cfg,
		grpcServer: grpcServer,
		health:     healthServer,
		httpServer: httpHandler.NewServer(cfg, svc),
		peer:       peerClient,
		service:    svc,
		agent: coordinatorClient.NewClient(coordinatorClient.Identity{
			ServerID: nodeID,
			HTTPAddr: cfg.HTTPAddr(),
			RPCAddr:  cfg.RPCAddr(),
		}, cfg.Coordinator.LeaderID, cfg.Coordinator.Addrs, cfg.Coordinator.HeartbeatInterval(), cfg.Coordinator.RequestTimeout()),
	}

	// 6. Gossip, advertises addresses to the coordinator
	if cfg.Gossip.Enabled {
		a.gossip, err = gossip.NewAdapter(gossip.Config{
			NodeName: nodeID,
			BindAddr: cfg.Server.Hostname,
			BindPort: cfg.Gossip.Port,
			Meta: gossip.Meta{
				ServerID: nodeID,
				HTTPAddr: cfg.HTTPAddr(),
				RPCAddr:  cfg.RPCAddr(),
				Role:     "metaserver",
			},
		}, nil)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("failed to init gossip: %w", err)
		}
	}

	return a, nil
}

func openRepository(cfg config.StoreConfig) (port.RecordRepository, error) {
	if cfg.Backend != "badger" {
		return repository.NewMemoryRepository(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	repo, err := repository.NewBadgerRepository(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return repo, nil
}

func (a *App) Run() error {
	// Start Gossip
	if a.gossip != nil && len(a.cfg.Gossip.Seeds) > 0 {
		if err := a.gossip.Join(a.cfg.Gossip.Seeds); err != nil {
			logger.Warnw("Failed to join gossip cluster", "error", err.Error())
		}
	}

	// Start gRPC
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.RPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", a.cfg.Server.RPCPort, err)
	}

	logger.Infow("Metadata server starting",
		"id", a.cfg.NodeID(),
		"rpc", a.cfg.RPCAddr(),
		"http", a.cfg.HTTPAddr(),
		"store", a.cfg.Store.Backend,
		"coordinators", a.cfg.Coordinator.Addrs)

	serverErrCh := make(chan error, 2)
	go func() {
		if err := a.grpcServer.Serve(listener); err != nil {
			serverErrCh <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()
	go func() {
		if err := a.httpServer.Start(); err != nil {
			serverErrCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	// Join the coordinator and keep heartbeating
	bgCtx, cancel := context.WithCancel(context.Background())
	a.backgroundStop = cancel
	go a.agent.Start(bgCtx)

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		// Ignore expected stop errors.
		errMsg := err.Error()
		if !strings.Contains(errMsg, "use of closed network connection") && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
			logger.Errorw("Metadata server exited unexpectedly", "error", errMsg)
		}
	}

	logger.Info("Shutting down metadata server")
	a.backgroundStop()
	a.agent.Stop()
	a.health.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		logger.Warnw("HTTP server shutdown failed", "error", err.Error())
	}
	if a.gossip != nil {
		if err := a.gossip.Leave(); err != nil {
			logger.Warnw("Gossip leave failed", "error", err.Error())
		}
	}
	a.grpcServer.GracefulStop()
	if err := a.peer.Close(); err != nil {
		logger.Warnw("Peer client close failed", "error", err.Error())
	}
	if err := a.service.Close(); err != nil {
		logger.Warnw("Record store close failed", "error", err.Error())
	}

	return runErr
}
