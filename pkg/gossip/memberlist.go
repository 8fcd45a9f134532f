package gossip

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/hashicorp/memberlist"
)

// Meta is what every node advertises to the cluster.
type Meta struct {
	ServerID string `json:"server_id"`
	HTTPAddr string `json:"http_addr"`
	RPCAddr  string `json:"rpc_addr"`
	Role     string `json:"role,omitempty"`
}

// Member is a node as seen through gossip.
type Member struct {
	Meta
	GossipAddr string
	Alive      bool
	SeenAt     time.Time
}

// Listener is told about membership changes. Calls happen on memberlist's
// event goroutine and must not block.
type Listener interface {
	MemberAlive(m Member)
	MemberLeft(m Member)
}

type Config struct {
	NodeName string
	BindAddr string
	BindPort int
	Meta     Meta
}

// Adapter joins a memberlist cluster and keeps a view of advertised server addresses.
type Adapter struct {
	list *memberlist.Memberlist
	meta Meta

	mu       sync.RWMutex
	listener Listener
	members  map[string]Member
}

var (
	_ memberlist.Delegate      = (*Adapter)(nil)
	_ memberlist.EventDelegate = (*Adapter)(nil)
)

// NewAdapter starts the local memberlist node.
func NewAdapter(cfg Config, listener Listener) (*Adapter, error) {
	conf := memberlist.DefaultLANConfig()
	conf.Name = cfg.NodeName
	if conf.Name == "" {
		conf.Name = cfg.Meta.ServerID
	}
	conf.BindAddr = cfg.BindAddr
	conf.BindPort = cfg.BindPort
	conf.AdvertisePort = cfg.BindPort
	conf.LogOutput = io.Discard

	a := newAdapter(cfg.Meta, listener)
	conf.Events = a
	conf.Delegate = a

	list, err := memberlist.Create(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	a.list = list
	return a, nil
}

// SetListener replaces the membership listener. Set it before Join to see every event.
func (a *Adapter) SetListener(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listener = l
}

func (a *Adapter) currentListener() Listener {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.listener
}

func newAdapter(meta Meta, listener Listener) *Adapter {
	return &Adapter{
		meta:     meta,
		listener: listener,
		members:  make(map[string]Member),
	}
}

// Join contacts seed nodes; an empty seed list starts a new cluster.
func (a *Adapter) Join(seeds []string) error {
	if len(seeds) == 0 {
		return nil
	}
	if _, err := a.list.Join(seeds); err != nil {
		return fmt.Errorf("failed to join cluster: %w", err)
	}
	return nil
}

func (a *Adapter) Leave() error {
	if a.list == nil {
		return nil
	}
	if err := a.list.Leave(5 * time.Second); err != nil {
		return err
	}
	return a.list.Shutdown()
}

// Members returns the known members ordered by server id.
func (a *Adapter) Members() []Member {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Member, 0, len(a.members))
	for _, m := range a.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerID < out[j].ServerID })
	return out
}

// Lookup returns the advertised addresses of a live server.
func (a *Adapter) Lookup(serverID string) (string, string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m, ok := a.members[serverID]
	if !ok || !m.Alive {
		return "", "", false
	}
	return m.HTTPAddr, m.RPCAddr, true
}

func (a *Adapter) NodeMeta(limit int) []byte {
	data, err := json.Marshal(a.meta)
	if err != nil {
		logger.Warnw("failed to marshal gossip node meta", "error", err.Error())
		return nil
	}
	if len(data) > limit {
		logger.Warnw("gossip node meta exceeds limit", "size", len(data), "limit", limit)
		return nil
	}
	return data
}

func (a *Adapter) NotifyMsg([]byte)                           {}
func (a *Adapter) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (a *Adapter) LocalState(join bool) []byte                { return nil }
func (a *Adapter) MergeRemoteState(buf []byte, join bool)     {}

func (a *Adapter) NotifyJoin(node *memberlist.Node) {
	m, ok := a.record(node, true)
	if !ok {
		return
	}
	logger.Infow("Gossip member alive", "server_id", m.ServerID, "rpc", m.RPCAddr, "http", m.HTTPAddr)
	if l := a.currentListener(); l != nil {
		l.MemberAlive(m)
	}
}

func (a *Adapter) NotifyLeave(node *memberlist.Node) {
	m, ok := a.record(node, false)
	if !ok {
		return
	}
	logger.Infow("Gossip member left", "server_id", m.ServerID)
	if l := a.currentListener(); l != nil {
		l.MemberLeft(m)
	}
}

func (a *Adapter) NotifyUpdate(node *memberlist.Node) {
	a.NotifyJoin(node)
}

func (a *Adapter) record(node *memberlist.Node, alive bool) (Member, bool) {
	meta, ok := decodeMeta(node.Meta)
	if !ok {
		meta.ServerID = node.Name
	}
	if meta.ServerID == "" || meta.ServerID == a.meta.ServerID {
		return Member{}, false
	}

	host := ""
	if node.Addr != nil {
		host = node.Addr.String()
	}
	m := Member{
		Meta:       meta,
		GossipAddr: net.JoinHostPort(host, fmt.Sprint(node.Port)),
		Alive:      alive,
		SeenAt:     time.Now(),
	}

	a.mu.Lock()
	a.members[meta.ServerID] = m
	a.mu.Unlock()
	return m, true
}

func decodeMeta(raw []byte) (Meta, bool) {
	var m Meta
	if len(raw) == 0 {
		return m, false
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		logger.Warnw("failed to decode node metadata", "error", err.Error())
		return Meta{}, false
	}
	return m, true
}
