package coordinator_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/anthanhphan/gosdk/logger"
)

// maxRedirects bounds how many leader hints a single request follows.
const maxRedirects = 3

var (
	// errRejoin means the coordinator no longer knows this server.
	errRejoin   = errors.New("coordinator requires rejoin")
	errNoTarget = errors.New("no coordinator address available")
)

// Identity is what this metadata server announces on join.
type Identity struct {
	ServerID string
	HTTPAddr string
	RPCAddr  string
}

// Peer is one member as reported by the coordinator.
type Peer struct {
	ServerID string `json:"serverId"`
	HTTPAddr string `json:"httpAddr"`
	RPCAddr  string `json:"rpcAddr"`
	IsLeader bool   `json:"isMaster"`
	Status   string `json:"status"`
}

type statusError struct {
	Code    int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("coordinator responded %d: %s", e.Code, e.Message)
}

type redirectError struct {
	LeaderID   string
	LeaderAddr string
}

func (e *redirectError) Error() string {
	return fmt.Sprintf("not the leader, leader is %s at %s", e.LeaderID, e.LeaderAddr)
}

// Client keeps a metadata server registered with the coordinator leader.
type Client struct {
	self          Identity
	leaderID      string
	seeds         []string
	leaderAddr    string
	joined        bool
	peers         []Peer
	targetBackoff map[string]time.Time
	targetFails   map[string]int
	mu            sync.RWMutex
	stop          chan struct{}
	stopOnce      sync.Once
	interval      time.Duration
	timeout       time.Duration
	peerEvery     int
	ticks         int
	now           func() time.Time
}

func NewClient(self Identity, leaderID string, seeds []string, interval, timeout time.Duration) *Client {
	return &Client{
		self:          self,
		leaderID:      leaderID,
		seeds:         seeds,
		targetBackoff: make(map[string]time.Time),
		targetFails:   make(map[string]int),
		stop:          make(chan struct{}),
		interval:      interval,
		timeout:       timeout,
		peerEvery:     10,
		now:           time.Now,
	}
}

// Start joins the cluster and heartbeats until ctx ends or Stop is called.
func (c *Client) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

func (c *Client) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Tick performs one round: join when needed, otherwise heartbeat.
func (c *Client) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if !c.Joined() {
		if err := c.Join(); err != nil {
			logger.Warnw("Failed to join coordinator", "server_id", c.self.ServerID, "error", err.Error())
			return
		}
		c.refreshPeers()
		return
	}

	err := c.Heartbeat()
	switch {
	case err == nil:
	case errors.Is(err, errRejoin):
		logger.Warnw("Coordinator dropped this server, rejoining", "server_id", c.self.ServerID)
		c.setJoined(false)
		if err := c.Join(); err != nil {
			logger.Warnw("Failed to rejoin coordinator", "server_id", c.self.ServerID, "error", err.Error())
			return
		}
	default:
		logger.Warnw("Heartbeat failed", "server_id", c.self.ServerID, "error", err.Error())
		return
	}

	c.mu.Lock()
	c.ticks++
	refresh := c.ticks%c.peerEvery == 0
	c.mu.Unlock()
	if refresh {
		c.refreshPeers()
	}
}

// Join registers this server through the designated leader.
func (c *Client) Join() error {
	body := map[string]string{
		"masterId": c.leaderID,
		"serverId": c.self.ServerID,
		"httpAddr": c.self.HTTPAddr,
		"rpcAddr":  c.self.RPCAddr,
	}
	_, err := c.post("/metadata/join_leader", body)
	var se *statusError
	if errors.As(err, &se) && se.Code == fiber.StatusConflict {
		// Already a member after a lost response.
		err = nil
	}
	if err != nil {
		return err
	}

	c.setJoined(true)
	logger.Infow("Joined coordinator", "server_id", c.self.ServerID, "leader_addr", c.LeaderAddr())
	return nil
}

func (c *Client) Heartbeat() error {
	_, err := c.post("/metadata/heartbeat", map[string]string{"serverId": c.self.ServerID})
	var se *statusError
	if errors.As(err, &se) && (se.Code == fiber.StatusNotFound || se.Code == fiber.StatusGone) {
		return fmt.Errorf("%w: %s", errRejoin, se.Message)
	}
	return err
}

// Peers returns the membership last reported by the coordinator.
func (c *Client) Peers() []Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Peer(nil), c.peers...)
}

func (c *Client) Joined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joined
}

func (c *Client) LeaderAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.leaderAddr
}

func (c *Client) setJoined(joined bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = joined
}

func (c *Client) refreshPeers() {
	raw, err := c.get("/metadata/peers?serverId=" + url.QueryEscape(c.self.ServerID))
	if err != nil {
		logger.Debugw("Failed to refresh peers", "error", err.Error())
		return
	}
	var peers []Peer
	if err := json.Unmarshal(raw, &peers); err != nil {
		logger.Warnw("Malformed peers response", "error", err.Error())
		return
	}

	c.mu.Lock()
	c.peers = peers
	c.mu.Unlock()
}

func (c *Client) post(path string, body any) ([]byte, error) {
	return c.do(func(addr string) *fiber.Agent {
		return fiber.Post(endpoint(addr, path)).JSON(body)
	})
}

func (c *Client) get(path string) ([]byte, error) {
	return c.do(func(addr string) *fiber.Agent {
		return fiber.Get(endpoint(addr, path))
	})
}

// do sends to the known leader, or to the first seed not backing off,
// following leader hints from followers.
func (c *Client) do(build func(addr string) *fiber.Agent) ([]byte, error) {
	var lastErr error
	for _, addr := range c.targets() {
		for hop := 0; hop <= maxRedirects; hop++ {
			raw, err := c.send(build(addr))
			var redirect *redirectError
			if errors.As(err, &redirect) && redirect.LeaderAddr != "" && redirect.LeaderAddr != addr {
				logger.Infow("Following coordinator leader hint", "from", addr, "leader_addr", redirect.LeaderAddr)
				c.setLeader(redirect.LeaderAddr)
				addr = redirect.LeaderAddr
				lastErr = err
				continue
			}

			var se *statusError
			if err == nil || redirect != nil || errors.As(err, &se) {
				// The coordinator answered, so the address is healthy.
				c.recordTargetSuccess(addr)
				c.setLeader(addr)
				return raw, err
			}
			c.recordTargetFailure(addr)
			lastErr = err
			break
		}
	}
	if lastErr == nil {
		lastErr = errNoTarget
	}
	return nil, lastErr
}

func (c *Client) send(agent *fiber.Agent) ([]byte, error) {
	code, raw, errs := agent.Timeout(c.timeout).Bytes()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if code < 300 {
		return raw, nil
	}

	var body struct {
		Error      string `json:"error"`
		LeaderID   string `json:"leaderId"`
		LeaderAddr string `json:"leaderAddr"`
	}
	_ = json.Unmarshal(raw, &body)
	if code == fiber.StatusTemporaryRedirect {
		return nil, &redirectError{LeaderID: body.LeaderID, LeaderAddr: body.LeaderAddr}
	}
	return nil, &statusError{Code: code, Message: body.Error}
}

func (c *Client) targets() []string {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{}, len(c.seeds)+1)
	out := make([]string, 0, len(c.seeds)+1)
	add := func(addr string) {
		if addr == "" {
			return
		}
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		if next, ok := c.targetBackoff[addr]; ok && now.Before(next) {
			return
		}
		out = append(out, addr)
	}
	add(c.leaderAddr)
	for _, s := range c.seeds {
		add(s)
	}

	// If every candidate is backing off, fall back to the seeds.
	if len(out) == 0 {
		out = append(out, c.seeds...)
	}
	return out
}

func (c *Client) setLeader(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaderAddr = addr
}

func (c *Client) recordTargetFailure(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.targetFails[addr]++
	failCount := c.targetFails[addr]
	if failCount > 6 {
		failCount = 6
	}
	backoff := c.interval * time.Duration(1<<failCount)
	if backoff > time.Minute {
		backoff = time.Minute
	}
	c.targetBackoff[addr] = c.now().Add(backoff)
	if c.leaderAddr == addr {
		c.leaderAddr = ""
	}
}

func (c *Client) recordTargetSuccess(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.targetFails, addr)
	delete(c.targetBackoff, addr)
}

func endpoint(addr, path string) string {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + path
}
