package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	orchestration "github.com/koscakluka/ema-dialogue/core"
	"github.com/koscakluka/ema-dialogue/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	writeTimeout   = 5 * time.Second
	maxMessageSize = 1 << 20
)

// Session is the part of the orchestrator the relay drives.
type Session interface {
	ID() string
	Orchestrate(ctx context.Context, opts ...orchestration.OrchestrateOption)
	Close()

	SendAudio(audio []byte) error
	Commit() error
	Interrupt()
	SetAudioPlaying(isPlaying bool)
	Configure(config orchestration.SessionConfig)
	ClearHistory()
}

// SessionFactory creates the session for a new browser connection.
type SessionFactory func(ctx context.Context) (Session, error)

type Handler struct {
	newSession SessionFactory
	upgrader   websocket.Upgrader
	vadConfig  any
}

type HandlerOption func(*Handler)

// WithVADConfig sends settings to the browser right after it connects.
func WithVADConfig(config any) HandlerOption {
	return func(h *Handler) { h.vadConfig = config }
}

func WithCheckOrigin(checkOrigin func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) { h.upgrader.CheckOrigin = checkOrigin }
}

func NewHandler(newSession SessionFactory, opts ...HandlerOption) *Handler {
	h := &Handler{
		newSession: newSession,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and relays between the browser and a new
// session until either side goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ctx, span := tracer.Start(ctx, "relay session")
	defer span.End()

	relay := &relay{conn: conn, cancel: cancel}
	stopCloser := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopCloser()

	session, err := h.newSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to create session", "error", err)
		relay.write(Envelope{Type: string(events.KindError), Data: "failed to start session"})
		return
	}
	span.SetAttributes(attribute.String("session.id", session.ID()))
	logger.Info("client connected", "session_id", session.ID())
	defer logger.Info("client disconnected", "session_id", session.ID())
	defer session.Close()

	if h.vadConfig != nil {
		relay.write(Envelope{Type: TypeVADConfig, Data: h.vadConfig})
	}

	session.Orchestrate(ctx, orchestration.WithEventCallback(relay.send))
	relay.readLoop(ctx, session)
}

type relay struct {
	conn   *websocket.Conn
	cancel context.CancelFunc

	writeMu sync.Mutex
}

func (r *relay) send(event events.Event) {
	if envelope, ok := EnvelopeFor(event); ok {
		r.write(envelope)
	}
}

// write sends one envelope. A failed write ends the connection.
func (r *relay) write(envelope Envelope) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	_ = r.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := r.conn.WriteJSON(envelope); err != nil {
		logger.Debug("failed to write to client", "type", envelope.Type, "error", err)
		r.cancel()
	}
}

func (r *relay) readLoop(ctx context.Context, session Session) {
	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("failed to read from client", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			r.sendAudio(session, data)
		case websocket.TextMessage:
			msg, err := DecodeClientMessage(data)
			if err != nil {
				logger.Debug("ignoring client message", "error", err)
				continue
			}
			r.dispatch(session, msg)
		}
	}
}

func (r *relay) dispatch(session Session, msg ClientMessage) {
	switch msg.Type {
	case TypeAudio:
		if msg.Audio == "" {
			return
		}
		audio, err := msg.AudioBytes()
		if err != nil {
			logger.Debug("ignoring audio message", "error", err)
			return
		}
		r.sendAudio(session, audio)
	case TypeCommit:
		if err := session.Commit(); err != nil {
			logger.Warn("failed to commit transcription", "error", err)
		}
	case TypeUserSpeaking:
		if msg.Interrupted {
			session.Interrupt()
		}
	case TypeAudioStatus:
		session.SetAudioPlaying(msg.Playing)
	case TypeConfig:
		session.Configure(msg.SessionConfig())
	case TypeClearHistory:
		session.ClearHistory()
	default:
		logger.Debug("ignoring unknown client message", "type", msg.Type)
	}
}

func (r *relay) sendAudio(session Session, audio []byte) {
	if len(audio) == 0 {
		return
	}
	if err := session.SendAudio(audio); err != nil {
		logger.Debug("failed to forward audio", "error", err)
	}
}
