package ws

import (
	"net/http"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/monitoring"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	subscribeQueue = 64
)

// Subscriber is the event source a connection streams from.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// Frame is one message on the stream.
type Frame struct {
	Type      string        `json:"type"`
	Message   string        `json:"message,omitempty"`
	Event     *events.Event `json:"event,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// Handler streams lifecycle events to WebSocket clients
type Handler struct {
	bus      Subscriber
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. checkOrigin may be nil to
// accept any origin.
func NewHandler(bus Subscriber, metrics *monitoring.Metrics, logger *zap.Logger, checkOrigin func(*http.Request) bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		bus:     bus,
		metrics: metrics,
		logger:  logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// filter keeps the events a client asked for. Empty fields match all.
type filter struct {
	owner string
	types []events.Type
}

func (f filter) match(e events.Event) bool {
	if f.owner != "" && e.Owner != f.owner && e.Owner != "" {
		return false
	}
	return len(f.types) == 0 || slices.Contains(f.types, e.Type)
}

// HandleConnection upgrades the request and streams events until the client
// disconnects or the bus closes. Query parameters user and type narrow the
// stream.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	f := filter{owner: c.Query("user")}
	for _, t := range c.QueryArray("type") {
		f.types = append(f.types, events.Type(t))
	}

	stream, cancel := h.bus.Subscribe(subscribeQueue)
	defer cancel()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	h.logger.Debug("Client connected", zap.String("remote", c.ClientIP()), zap.String("user", f.owner))

	replies := make(chan Frame, 8)
	readDone := make(chan struct{})
	go h.readLoop(conn, replies, readDone)

	if err := h.send(conn, Frame{Type: "system", Message: "connected to launcherd"}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-stream:
			if !ok {
				h.closeWith(conn, websocket.CloseGoingAway, "shutting down")
				return
			}
			if !f.match(e) {
				continue
			}
			if err := h.send(conn, Frame{Type: "event", Event: &e}); err != nil {
				return
			}
		case reply := <-replies:
			if err := h.send(conn, reply); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

// readLoop handles client messages. Replies go through the writer loop since
// a connection supports one concurrent writer.
func (h *Handler) readLoop(conn *websocket.Conn, replies chan<- Frame, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		reply, label := Frame{Type: "pong"}, "ping"
		if err := sonic.Unmarshal(data, &msg); err != nil {
			reply, label = Frame{Type: "error", Message: "invalid message"}, "invalid"
		} else if msg.Type != "ping" {
			reply, label = Frame{Type: "error", Message: "unknown message type"}, "unknown"
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", label)
		}

		select {
		case replies <- reply:
		default:
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, frame Frame) error {
	frame.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(frame)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordWSMessage("out", frame.Type)
	}
	return nil
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
