package gateway

import (
	"context"
	"net"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fleetlink/gt06-gateway/internal/bus"
	"github.com/fleetlink/gt06-gateway/internal/session"
	"github.com/fleetlink/gt06-gateway/pkg/gt06/codec"
)

// ChannelTable maps a connection's opaque channel id to the live Handler
// driving it. It is the in-process half of the Session Registry's
// channel_id index: the registry durably records which channel a session
// belongs to, while this table resolves that id back to a writable
// connection within this process.
type ChannelTable struct {
	mu       sync.RWMutex
	handlers map[string]*Handler
}

// NewChannelTable returns an empty table.
func NewChannelTable() *ChannelTable {
	return &ChannelTable{handlers: make(map[string]*Handler)}
}

func (t *ChannelTable) Register(channelID string, h *Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[channelID] = h
}

func (t *ChannelTable) Unregister(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, channelID)
}

func (t *ChannelTable) Get(channelID string) (*Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[channelID]
	return h, ok
}

// SessionLookup adapts the full session.Registry to the narrow interface
// the Command Consumer (C6) depends on (bus.SessionLookup).
type SessionLookup struct {
	Registry session.Registry
}

func (l SessionLookup) GetByIMEI(ctx context.Context, imei string) (string, bool, error) {
	sess, err := l.Registry.GetByIMEI(ctx, imei)
	if err != nil {
		if err == session.ErrNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return sess.ChannelID, true, nil
}

// FrameSender adapts the in-process ChannelTable to bus.FrameSender: C6
// resolves a channel id to a live Handler and asks it to write, but never
// touches the socket itself.
type FrameSender struct {
	Table *ChannelTable
}

func (s FrameSender) SendFrame(ctx context.Context, channelID string, frame []byte) error {
	h, ok := s.Table.Get(channelID)
	if !ok {
		return session.ErrNotFound
	}
	return h.SendFrame(ctx, channelID, frame)
}

// Server accepts TCP connections and spawns one Handler per connection.
type Server struct {
	cfg        Config
	listenAddr string
	decoderReg *codec.Registry
	registry   session.Registry
	publisher  *bus.Publisher
	table      *ChannelTable
	log        *logrus.Entry
}

// NewServer builds a Server ready to Serve. registry and publisher must
// already be running.
func NewServer(cfg Config, listenAddr string, registry session.Registry, publisher *bus.Publisher) *Server {
	return &Server{
		cfg:        cfg,
		listenAddr: listenAddr,
		decoderReg: codec.DefaultRegistry(),
		registry:   registry,
		publisher:  publisher,
		table:      NewChannelTable(),
		log:        logrus.WithField("component", "gateway_server"),
	}
}

// ChannelTable exposes the server's connection table, for wiring the
// Command Consumer's FrameSender adapter.
func (s *Server) ChannelTable() *ChannelTable { return s.table }

// Serve accepts connections on listenAddr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.log.WithField("addr", s.listenAddr).Info("gateway listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	channelID, err := uuid.NewV4()
	if err != nil {
		_ = conn.Close()
		return
	}
	decoder := codec.NewDecoder(s.decoderReg)
	encoder := codec.NewEncoder()
	h := NewHandler(s.cfg, conn, channelID.String(), decoder, encoder, s.registry, s.publisher, s.table)
	h.Run(ctx)
}
