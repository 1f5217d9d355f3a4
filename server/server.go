package server

import (
	"context"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/multierr"

	"arenasync/protocol"
	"arenasync/store"
)

const msgWelcome = "欢迎登录：%s"

// Server 同步服务核心：会话、分组、分发表与道具调度都由它持有并注入各组件
type Server struct {
	cfg    Config
	scales map[string]int32
	bounds *boundsTable

	store      store.Store
	sessions   *SessionStore
	hub        *Hub
	chars      *CharacterService
	spawns     *SpawnScheduler
	dispatcher *Dispatcher
	metrics    *ServerMetrics

	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
}

// Option 构造选项
type Option func(*Server)

// WithClock 替换时间来源（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(cfg Config, st store.Store, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		scales:   cfg.ScaleTable(),
		bounds:   newBoundsTable(cfg),
		store:    st,
		sessions: NewSessionStore(),
		metrics:  &ServerMetrics{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.hub = NewHub(s.sessions)
	s.chars = NewCharacterService(st)
	s.spawns = NewSpawnScheduler(st, s.hub, s.metrics, cfg.Spawn, s.now)
	s.dispatcher = NewDispatcher(map[protocol.MsgType]HandlerFunc{
		protocol.MsgPlayerLogin:     s.handleLogin,
		protocol.MsgCharacterCreate: s.handleCharacterCreate,
		protocol.MsgPlayerOnline:    s.handlePlayerOnline,
		protocol.MsgPlayerMove:      s.handlePlayerMove,
		protocol.MsgItemCollected:   s.handleItemCollected,
		protocol.MsgOffline:         s.handleOffline,
		protocol.MsgPing:            s.handlePing,
	}, s.hub.SendTo, s.metrics)
	return s
}

func (s *Server) Hub() *Hub                  { return s.hub }
func (s *Server) Sessions() *SessionStore    { return s.sessions }
func (s *Server) Metrics() *ServerMetrics    { return s.metrics }
func (s *Server) Scheduler() *SpawnScheduler { return s.spawns }

// OnConnect 新连接：登记、创建空会话、发送欢迎消息
func (s *Server) OnConnect(conn Conn) {
	s.hub.Register(conn)
	s.sendTo(conn.ID(), protocol.MustFrame(protocol.MsgOnConnect, protocol.EncodeText(fmt.Sprintf(msgWelcome, conn.ID()))))
	Log.Infow("client connected", "conn", conn.ID())
}

// OnMessage 一次传输投递即一条完整消息
func (s *Server) OnMessage(ctx context.Context, id ConnID, data []byte) {
	s.dispatcher.Dispatch(ctx, id, data)
}

// OnDisconnect 传输层检测到断开：回收会话（与 Offline 消息竞争时只执行一次）并注销连接
func (s *Server) OnDisconnect(id ConnID) {
	// 停机时 s.ctx 已取消，最后状态仍要写回
	s.release(context.WithoutCancel(s.ctx), id, "disconnect")
	s.hub.Unregister(id)
	Log.Infow("client disconnected", "conn", id)
}

// Run 运行道具调度器直到 ctx 结束
func (s *Server) Run(ctx context.Context) error {
	return s.spawns.Run(ctx)
}

// Shutdown 先回收所有会话并写回玩家最后状态，再关闭连接，最后取消服务上下文
func (s *Server) Shutdown() error {
	conns := s.hub.Conns()
	ctx := context.WithoutCancel(s.ctx)
	for _, c := range conns {
		s.release(ctx, c.ID(), "shutdown")
	}
	var err error
	for _, c := range conns {
		err = multierr.Append(err, c.Close())
	}
	s.cancel()
	return err
}

func (s *Server) sendTo(id ConnID, frame []byte) bool {
	if !s.hub.SendTo(id, frame) {
		s.metrics.AddFailed(1)
		return false
	}
	return true
}

func (s *Server) broadcast(mapID int32, frame []byte, excluding ...ConnID) {
	_, failed := s.hub.Broadcast(mapID, frame, excluding...)
	s.metrics.AddBroadcast(failed)
}

// boundsTable 各地图的移动边界，可通过 /admin/config 在运行时调整
type boundsTable struct {
	mu   deadlock.RWMutex
	cfg  Config
	maps map[int32]MapConfig
}

func newBoundsTable(cfg Config) *boundsTable {
	t := &boundsTable{cfg: cfg, maps: make(map[int32]MapConfig, len(cfg.Maps))}
	for _, m := range cfg.Maps {
		t.maps[m.ID] = m
	}
	return t
}

func (t *boundsTable) Get(mapID int32) MapConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if m, ok := t.maps[mapID]; ok {
		return m
	}
	return t.cfg.MapBounds(mapID)
}

func (t *boundsTable) Set(m MapConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maps[m.ID] = m
}

func (t *boundsTable) All() []MapConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]MapConfig, 0, len(t.maps))
	for _, m := range t.maps {
		out = append(out, m)
	}
	return out
}
