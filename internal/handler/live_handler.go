package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/viagem-certa/service-trip/internal/estimate"
	"go.uber.org/zap"
)

const (
	liveWriteWait   = 10 * time.Second
	livePongWait    = 60 * time.Second
	livePingPeriod  = (livePongWait * 9) / 10
	liveReadLimit   = 8 << 10
	liveSendBacklog = 16
)

// Frame types exchanged on the live quote socket.
const (
	liveMsgChange    = "change"
	liveMsgRecompute = "recompute"
	liveMsgOutcome   = "outcome"
	liveMsgBusy      = "busy"
	liveMsgError     = "error"
)

type liveInbound struct {
	Type        string              `json:"type"`
	Origin      estimate.PlaceQuery `json:"origin"`
	Destination estimate.PlaceQuery `json:"destination"`
}

type liveOutbound struct {
	Type    string            `json:"type"`
	State   estimate.State    `json:"state,omitempty"`
	Outcome *estimate.Outcome `json:"outcome,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// LiveEstimateHandler pushes quotes over a websocket while the customer edits
// the trip form. Each connection owns one Orchestrator.
type LiveEstimateHandler struct {
	estimator estimate.Estimator
	opts      []estimate.OrchestratorOption
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewLiveEstimateHandler creates a new LiveEstimateHandler. opts configure
// every per-connection Orchestrator.
func NewLiveEstimateHandler(estimator estimate.Estimator, logger *zap.Logger, opts ...estimate.OrchestratorOption) *LiveEstimateHandler {
	return &LiveEstimateHandler{
		estimator: estimator,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// RegisterRoutes registers the live estimate route.
func (h *LiveEstimateHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/api/v1/estimates/live", h.Serve)
}

// Serve handles GET /api/v1/estimates/live.
func (h *LiveEstimateHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &liveSession{
		conn:   conn,
		send:   make(chan liveOutbound, liveSendBacklog),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		logger: h.logger,
	}

	opts := append([]estimate.OrchestratorOption{
		estimate.WithLogger(h.logger),
		estimate.WithListener(sess.push),
	}, h.opts...)
	orch := estimate.NewOrchestrator(h.estimator, opts...)

	go sess.writeLoop()
	sess.readLoop(orch)

	orch.Close()
	close(sess.done)
}

type liveSession struct {
	conn   *websocket.Conn
	send   chan liveOutbound
	done   chan struct{} // reader finished
	closed chan struct{} // writer finished
	logger *zap.Logger
}

// push queues a frame for the writer. Frames are dropped once either side of
// the session has ended.
func (s *liveSession) push(state estimate.State, out estimate.Outcome) {
	s.enqueue(liveOutbound{Type: liveMsgOutcome, State: state, Outcome: &out})
}

func (s *liveSession) enqueue(frame liveOutbound) {
	select {
	case s.send <- frame:
	case <-s.done:
	case <-s.closed:
	}
}

func (s *liveSession) readLoop(orch *estimate.Orchestrator) {
	s.conn.SetReadLimit(liveReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		var msg liveInbound
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("live estimate connection closed", zap.Error(err))
			}
			return
		}

		form := estimate.Form{Origin: msg.Origin, Destination: msg.Destination}
		switch msg.Type {
		case liveMsgChange:
			orch.Change(form)
		case liveMsgRecompute:
			if !form.Complete() {
				s.enqueue(liveOutbound{Type: liveMsgError, Error: "origin and destination are incomplete"})
				continue
			}
			if !orch.RecomputeNow(form) {
				s.enqueue(liveOutbound{Type: liveMsgBusy})
			}
		default:
			s.enqueue(liveOutbound{Type: liveMsgError, Error: "unknown message type: " + msg.Type})
		}
	}
}

// writeLoop is the only goroutine that writes to the connection.
func (s *liveSession) writeLoop() {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		close(s.closed)
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				s.logger.Debug("live estimate write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(liveWriteWait))
			return
		}
	}
}
