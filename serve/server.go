// Package serve hosts completion sessions behind a Unix domain socket.
//
// Each connection is one terminal session speaking newline-delimited JSON:
// the host sends termsuggest.Frame values and receives termsuggest.Reply
// values. All sessions share one global command cache.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/addon"
	"github.com/Paranoid-AF/termsuggest/cache"
)

// maxFrameSize bounds one JSON line. Output frames carrying a global
// command list can be several MiB once base64 encoded.
const maxFrameSize = 16 << 20

// Server listens on a Unix domain socket for terminal sessions.
type Server struct {
	listener net.Listener
	sockPath string
	cache    *cache.GlobalCommands
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	cfg      *termsuggest.Config
	sessions map[string]*session
	closed   bool
}

// NewServer binds sockPath, replacing a stale socket file.
func NewServer(sockPath string, shared *cache.GlobalCommands, cfg *termsuggest.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "remove stale socket %s", sockPath)
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", sockPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		listener: listener,
		sockPath: sockPath,
		cache:    shared,
		logger:   logger.Named("serve"),
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		sessions: make(map[string]*session),
	}, nil
}

// SocketPath returns the bound socket path.
func (s *Server) SocketPath() string {
	return s.sockPath
}

// Serve accepts connections until Close. It returns nil after Close.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accept")
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Close stops accepting, ends every session and removes the socket file.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	s.cancel()
	s.listener.Close()
	for _, sess := range sessions {
		sess.conn.Close()
	}
	s.wg.Wait()
	os.Remove(s.sockPath)
}

// ApplyConfig pushes cfg to every live session and to sessions opened later.
func (s *Server) ApplyConfig(cfg *termsuggest.Config) {
	s.mu.Lock()
	s.cfg = cfg
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.addon.ApplyConfig(s.ctx, cfg)
	}
	s.logger.Info("configuration applied", zap.Int("sessions", len(sessions)))
}

// Sessions reports the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	id := uuid.NewString()
	logger := s.logger.With(zap.String("session", id))
	out := &replyWriter{w: conn, logger: logger}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	a := addon.New(addon.Options{
		Shell:  shellWriter{out},
		Cache:  s.cache,
		Config: s.cfg,
		Logger: logger,
	})
	sess := &session{id: id, conn: conn, addon: a, out: out, logger: logger}
	s.sessions[id] = sess
	s.mu.Unlock()

	logger.Debug("session opened")
	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		sess.close()
		logger.Debug("session closed")
	}()

	sess.run(s.ctx)
}

// replyWriter serializes replies onto the connection.
type replyWriter struct {
	mu     sync.Mutex
	w      io.Writer
	logger *zap.Logger
}

func (r *replyWriter) send(reply termsuggest.Reply) {
	data, err := json.Marshal(reply)
	if err != nil {
		r.logger.Error("failed to marshal reply", zap.Error(err))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(append(data, '\n')); err != nil {
		r.logger.Debug("failed to write reply", zap.String("event", reply.Event), zap.Error(err))
	}
}

// shellWriter turns trigger bytes into "write" replies for the host.
type shellWriter struct {
	out *replyWriter
}

func (w shellWriter) Write(p []byte) (int, error) {
	w.out.send(termsuggest.Reply{Event: "write", Data: append([]byte(nil), p...)})
	return len(p), nil
}

// session is one connected terminal.
type session struct {
	id     string
	conn   net.Conn
	addon  *addon.Addon
	out    *replyWriter
	logger *zap.Logger

	requests sync.WaitGroup
	unsub    func()
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.unsub = s.addon.Subscribe(s.forward)

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	for scanner.Scan() {
		var f termsuggest.Frame
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			s.logger.Warn("invalid frame", zap.Error(err))
			s.out.send(errorReply(0, "invalid_frame", err.Error()))
			continue
		}
		s.handle(ctx, &f)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("connection read failed", zap.Error(err))
	}
}

func (s *session) close() {
	if s.unsub != nil {
		s.unsub()
	}
	// Pending requests resolve as unavailable before we wait on them.
	s.addon.Close()
	s.requests.Wait()
}

func (s *session) handle(ctx context.Context, f *termsuggest.Frame) {
	switch f.Type {
	case "output":
		s.addon.Feed(ctx, f.Data)
	case "prompt":
		if f.Prompt == nil {
			s.addon.SetPrompt(nil)
			return
		}
		s.addon.SetPrompt(addon.StaticPrompt(*f.Prompt))
	case "focus":
		s.addon.SetFocused(f.Focused)
	case "keystroke":
		s.addon.Keystroke()
	case "request":
		s.requests.Add(1)
		go func(id int) {
			defer s.requests.Done()
			items, ok, err := s.addon.RequestCompletions(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.out.send(errorReply(id, "request_failed", err.Error()))
				}
				return
			}
			s.out.send(termsuggest.Reply{Event: "completions", RequestID: id, Items: items, Available: ok})
		}(f.RequestID)
	case "accept":
		if f.Item == nil {
			s.out.send(errorReply(0, "invalid_frame", "accept frame without item"))
			return
		}
		s.addon.Accept(*f.Item)
	case "clear_cache":
		if err := s.addon.ClearCache(ctx); err != nil {
			s.out.send(errorReply(0, "cache_error", err.Error()))
		}
	default:
		s.out.send(errorReply(0, "unknown_frame", "unknown frame type: "+f.Type))
	}
}

// forward relays addon events to the host.
func (s *session) forward(e addon.Event) {
	switch e.Type {
	case addon.CompletionsReceived:
		s.out.send(termsuggest.Reply{Event: "completions_received", Items: e.Items})
	case addon.CompletionsRequested:
		s.out.send(termsuggest.Reply{Event: "completions_requested"})
	case addon.SuggestionAccepted:
		s.out.send(termsuggest.Reply{Event: "write", Data: e.Data})
	case addon.Bell:
		s.out.send(termsuggest.Reply{Event: "bell"})
	}
}

func errorReply(requestID int, code, msg string) termsuggest.Reply {
	return termsuggest.Reply{
		Event:     "error",
		RequestID: requestID,
		Error:     &termsuggest.Error{Code: code, Message: msg},
	}
}
