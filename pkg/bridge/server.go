package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agrivaani/agrivaani/pkg/logging"
	"github.com/agrivaani/agrivaani/pkg/session"
)

// Snapshot is the state pushed to connected presentation clients after
// every session state change.
type Snapshot struct {
	Type              string                `json:"type"`
	State             string                `json:"state"`
	Language          string                `json:"language"`
	CurrentTranscript string                `json:"current_transcript"`
	LastError         *session.SessionError `json:"last_error,omitempty"`
	Messages          []session.Message     `json:"messages"`
}

// Command is a control message from a presentation client.
type Command struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
}

// Server exposes one conversation session to presentation clients over
// a WebSocket. The presentation layer itself lives elsewhere; this is
// only the boundary the pipeline is consumed through.
type Server struct {
	addr     string
	sess     *session.Session
	logger   *slog.Logger
	upgrader websocket.Upgrader
	srv      *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func NewServer(addr string, sess *session.Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewComponentLogger(slog.Default(), "bridge")
	}
	s := &Server{
		addr:    addr,
		sess:    sess,
		logger:  logger,
		clients: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	sess.AddListener(s)
	return s
}

// OnStateChange implements session.StateListener by broadcasting a
// fresh snapshot.
func (s *Server) OnStateChange(session.StateChange) {
	s.broadcast()
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge_listen_error", "error", err.Error())
		}
	}()
	s.logger.Info("bridge_listening", "addr", s.addr)
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	for conn, out := range s.clients {
		close(out)
		_ = conn.Close()
		delete(s.clients, conn)
	}
	s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Info("bridge_upgrade_failed", "error", err.Error())
		return
	}
	out := make(chan []byte, 16)
	s.mu.Lock()
	s.clients[conn] = out
	s.mu.Unlock()

	go s.writeLoop(conn, out)
	s.send(out, s.snapshot())
	s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.logger.Debug("bridge_bad_command", "error", err.Error())
			continue
		}
		s.dispatch(cmd)
	}
}

func (s *Server) dispatch(cmd Command) {
	switch cmd.Type {
	case "toggle_capture":
		s.sess.ToggleCapture()
	case "clear":
		s.sess.Clear()
	case "set_language":
		s.sess.SetLanguage(cmd.Language)
	case "set_continuous":
		s.sess.SetContinuousCapture(cmd.Enabled)
	case "replay":
		s.sess.ReplayLast()
	default:
		s.logger.Debug("bridge_unknown_command", "type", cmd.Type)
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, out <-chan []byte) {
	for data := range out {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	if out, ok := s.clients[conn]; ok {
		close(out)
		delete(s.clients, conn)
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) snapshot() []byte {
	snap := Snapshot{
		Type:              "snapshot",
		State:             s.sess.State().String(),
		Language:          s.sess.Settings().Language(),
		CurrentTranscript: s.sess.CurrentTranscript(),
		LastError:         s.sess.LastError(),
		Messages:          s.sess.Transcript(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return []byte(`{"type":"snapshot"}`)
	}
	return data
}

func (s *Server) broadcast() {
	data := s.snapshot()
	s.mu.Lock()
	for _, out := range s.clients {
		s.send(out, data)
	}
	s.mu.Unlock()
}

func (s *Server) send(out chan []byte, data []byte) {
	select {
	case out <- data:
	default:
	}
}
