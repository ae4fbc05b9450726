package chat

import (
	"context"
	"sync"
	"time"

	"PPLive/logger"
	"PPLive/module/chat/model"
	"PPLive/tools/errs"
	"PPLive/tools/ids"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("gateway is shutting down")

type Options struct {
	NodeID         int64
	Presence       PresenceOptions
	SendQueueSize  int
	FanoutWorkers  int
	FanoutQueue    int
	PingInterval   time.Duration
	WriteWait      time.Duration
	ReadLimit      int64
	AllowedOrigins []string
	LedgerTimeout  time.Duration
}

func (o *Options) norm() {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.FanoutWorkers <= 0 {
		o.FanoutWorkers = 8
	}
	if o.FanoutQueue <= 0 {
		o.FanoutQueue = 1024
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
}

// Server is the gateway: it owns every live connection and the components
// that route events between them.
type Server struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	ids      *ids.Node
	registry *Registry
	tracker  *Tracker
	fanout   *Fanout
	rooms    *Rooms
	pipeline *Pipeline
	typing   *Typing
	disp     *Dispatcher
	upgrader websocket.Upgrader

	life    sync.RWMutex
	closing bool
	wg      sync.WaitGroup
}

func NewServer(opts Options, store PresenceStore, ledger Ledger, tap EventTap) *Server {
	opts.norm()
	if tap == nil {
		tap = nopTap{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		ids:    ids.NewNode(opts.NodeID),
		rooms:  NewRooms(),
		disp:   NewDispatcher(),
	}
	s.tracker = NewTracker(store, opts.Presence, tap)
	s.registry = NewRegistry(s.tracker)
	s.fanout = NewFanout(opts.FanoutWorkers, opts.FanoutQueue, s.registry.ForEach)
	s.tracker.fanout = s.fanout
	s.pipeline = NewPipeline(ledger, s.rooms, tap, opts.LedgerTimeout)
	s.typing = NewTyping(s.rooms)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return s
}

func (s *Server) Registry() *Registry      { return s.registry }
func (s *Server) Tracker() *Tracker        { return s.tracker }
func (s *Server) Rooms() *Rooms            { return s.rooms }
func (s *Server) Pipeline() *Pipeline      { return s.pipeline }
func (s *Server) Typing() *Typing          { return s.typing }
func (s *Server) Disp() *Dispatcher        { return s.disp }
func (s *Server) Context() context.Context { return s.ctx }

// Attach creates and registers a connection for an authenticated user.
func (s *Server) Attach(userID int64) (*Conn, error) {
	s.life.RLock()
	defer s.life.RUnlock()
	if s.closing {
		return nil, ErrClosed
	}
	c := NewConn(s.ids.NextString(), userID, s.opts.SendQueueSize)
	first := s.registry.Register(s.ctx, userID, c)
	logger.Info("[Server] connection attached",
		zap.Int64("user_id", userID), zap.String("conn_id", c.ID), zap.Bool("first", first))
	return c, nil
}

// Detach leaves every room and unregisters c. Calling it again is a no-op.
func (s *Server) Detach(c *Conn) {
	s.rooms.LeaveAll(c)
	if s.registry.Unregister(s.ctx, c.UserID, c) {
		logger.Info("[Server] user went offline", zap.Int64("user_id", c.UserID))
	}
	logger.Debug("[Server] connection detached",
		zap.Int64("user_id", c.UserID), zap.String("conn_id", c.ID), zap.Int64("dropped", c.Dropped()))
}

// HandleFrame decodes one inbound frame and dispatches it. Validation and
// persistence errors go back to c as message-error; malformed input is
// logged and ignored.
func (s *Server) HandleFrame(ctx context.Context, c *Conn, raw []byte) {
	f, err := ParseFrame(raw)
	if err != nil {
		sample := raw
		if len(sample) > 256 {
			sample = sample[:256]
		}
		logger.Warn("[Server] undecodable frame ignored",
			zap.String("conn_id", c.ID), zap.ByteString("sample", sample), zap.Error(err))
		return
	}
	if err := s.disp.Dispatch(ctx, c, f); err != nil {
		s.report(c, f.Event, err)
	}
}

func (s *Server) report(c *Conn, event string, err error) {
	ce := errs.As(err)
	if ce.Code == errs.CodeMalformedRequest {
		logger.Warn("[Server] malformed request ignored",
			zap.String("conn_id", c.ID), zap.String("event", event), zap.Error(err))
		return
	}
	logger.Info("[Server] request rejected",
		zap.String("conn_id", c.ID), zap.String("event", event), zap.Int("code", ce.Code), zap.Error(err))
	msg := ce.Msg
	if ce.Detail != "" {
		msg += ": " + ce.Detail
	}
	c.Emit(model.EvMessageError, model.MessageError{Error: msg, Code: ce.Code})
}

// Shutdown refuses new connections, detaches every live one (which takes
// their users offline and deletes their presence keys) and waits for the
// connection goroutines until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.life.Lock()
	s.closing = true
	s.life.Unlock()

	s.registry.ForEach(s.Detach)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		logger.Warn("[Server] shutdown timed out waiting for connections", zap.Error(err))
	}

	s.fanout.Close()
	s.tracker.Close()
	s.cancel()
	return err
}
