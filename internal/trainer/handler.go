package trainer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/neuroforge/trainlink/internal/auth"
	"github.com/neuroforge/trainlink/internal/observability"
	"github.com/neuroforge/trainlink/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type HandlerConfig struct {
	// AuthToken, when set, requires a matching bearer token on upgrade.
	AuthToken string
	// TrainTick is the delay between synthetic training epochs.
	TrainTick time.Duration
	Logger    *zerolog.Logger
}

// Handler serves the /ws endpoint: one read loop per connection,
// dispatching on commandType and echoing requestIds on responses.
type Handler struct {
	store     Store
	validator auth.Validator
	tick      time.Duration
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

func NewHandler(store Store, cfg HandlerConfig) *Handler {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	tick := cfg.TrainTick
	if tick <= 0 {
		tick = 200 * time.Millisecond
	}
	var validator auth.Validator
	if cfg.AuthToken != "" {
		validator = auth.StaticToken{Token: cfg.AuthToken}
	}
	return &Handler{
		store:     store,
		validator: validator,
		tick:      tick,
		log:       logger.With().Str("component", "trainer").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// sessionConn serializes writes; gorilla allows one concurrent writer.
type sessionConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *sessionConn) send(env protocol.Envelope) error {
	raw, err := env.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

func (s *sessionConn) closeNormal() {
	s.mu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.mu.Unlock()
	_ = s.conn.Close()
}

func (h *Handler) HandleWS(c *gin.Context) {
	if err := auth.CheckRequest(h.validator, c.Request); err != nil {
		h.log.Warn().Str("remote", c.Request.RemoteAddr).Msg("ws unauthorized")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	observability.ConnectionOpened()
	defer observability.ConnectionClosed()

	sess := &sessionConn{conn: conn}
	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("session connected")
	h.readLoop(sess)
	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("session disconnected")
}

func (h *Handler) readLoop(sess *sessionConn) {
	defer func() { _ = sess.conn.Close() }()
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("ws read failed")
			}
			return
		}
		env, derr := protocol.Decode(raw)
		if derr != nil {
			h.answerMalformed(sess, raw, derr)
			continue
		}
		if !h.dispatch(sess, env) {
			return
		}
	}
}

// answerMalformed replies with an error response when the broken frame
// still carries a recoverable requestId; otherwise the frame is only
// logged and dropped.
func (h *Handler) answerMalformed(sess *sessionConn, raw []byte, cause error) {
	var probe struct {
		RequestID   string               `json:"requestId"`
		CommandType protocol.CommandType `json:"commandType"`
	}
	_ = json.Unmarshal(raw, &probe)
	if probe.RequestID == "" {
		h.log.Warn().Err(cause).Msg("dropping malformed frame")
		return
	}
	commandType := probe.CommandType
	if commandType == "" {
		commandType = "unknown"
	}
	h.respondError(sess, commandType, probe.RequestID, "E_MALFORMED", cause.Error())
}

// dispatch handles one command and reports whether the loop continues.
func (h *Handler) dispatch(sess *sessionConn, env protocol.Envelope) bool {
	start := time.Now()
	status := protocol.StatusSuccess
	keepGoing := true

	switch env.CommandType {
	case protocol.CommandInit:
		status = h.handleInit(sess, env)
	case protocol.CommandTrain:
		status = h.handleTrain(sess, env)
	case protocol.CommandQuery:
		status = h.handleQuery(sess, env)
	case protocol.CommandPing:
		h.respond(sess, protocol.CommandPing, protocol.PingResult{
			Status:  protocol.StatusSuccess,
			Message: "pong",
		}, env.RequestID)
	case protocol.CommandClose:
		h.respond(sess, protocol.CommandClose, protocol.CloseResult{
			Status:  protocol.StatusSuccess,
			Message: "session closed",
		}, env.RequestID)
		sess.closeNormal()
		keepGoing = false
	default:
		status = protocol.StatusError
		h.respondError(sess, env.CommandType, env.RequestID, "E_UNSUPPORTED", "unsupported command: "+string(env.CommandType))
	}

	observability.RecordCommand(string(env.CommandType), string(status), time.Since(start))
	return keepGoing
}

func (h *Handler) handleInit(sess *sessionConn, env protocol.Envelope) protocol.Status {
	var cmd protocol.InitCommand
	if err := env.DecodeData(&cmd); err != nil {
		h.respondError(sess, protocol.CommandInit, env.RequestID, "E_MALFORMED", err.Error())
		return protocol.StatusError
	}
	if err := cmd.Model.Validate(); err != nil {
		h.respondError(sess, protocol.CommandInit, env.RequestID, "E_INVALID_MODEL", err.Error())
		return protocol.StatusError
	}

	model := Model{
		ID:         "mdl_" + uuid.NewString(),
		Definition: cmd.Model,
		CreatedAt:  time.Now(),
	}
	if err := h.store.RegisterModel(context.Background(), model); err != nil {
		h.respondError(sess, protocol.CommandInit, env.RequestID, "E_STORE", err.Error())
		return protocol.StatusError
	}
	h.log.Info().Str("model_id", model.ID).Str("name", cmd.Model.Metadata.Name).
		Int("layers", len(cmd.Model.Layers)).Msg("model registered")
	h.respond(sess, protocol.CommandInit, protocol.InitResult{
		Status:  protocol.StatusSuccess,
		ModelID: model.ID,
		Message: "model registered",
	}, env.RequestID)
	return protocol.StatusSuccess
}

func (h *Handler) handleTrain(sess *sessionConn, env protocol.Envelope) protocol.Status {
	var cmd protocol.TrainCommand
	if err := env.DecodeData(&cmd); err != nil {
		h.respondError(sess, protocol.CommandTrain, env.RequestID, "E_MALFORMED", err.Error())
		return protocol.StatusError
	}
	model, err := h.store.GetModel(context.Background(), cmd.ModelID)
	if err != nil {
		h.respondError(sess, protocol.CommandTrain, env.RequestID, "E_NO_MODEL", "unknown model: "+cmd.ModelID)
		return protocol.StatusError
	}
	epochs := cmd.Epochs
	if epochs <= 0 {
		epochs = model.Definition.Hyperparameters.Epochs
	}
	if epochs <= 0 {
		h.respondError(sess, protocol.CommandTrain, env.RequestID, "E_INVALID_EPOCHS", "epochs must be positive")
		return protocol.StatusError
	}

	run := Run{
		ID:        "run_" + uuid.NewString(),
		ModelID:   model.ID,
		DatasetID: cmd.DatasetID,
		Epochs:    epochs,
		Status:    protocol.StatusInProgress,
		StartedAt: time.Now(),
	}
	if err := h.store.SaveRun(context.Background(), run); err != nil {
		h.respondError(sess, protocol.CommandTrain, env.RequestID, "E_STORE", err.Error())
		return protocol.StatusError
	}
	go h.runTraining(sess, model, run, env.RequestID)
	return protocol.StatusInProgress
}

func (h *Handler) handleQuery(sess *sessionConn, env protocol.Envelope) protocol.Status {
	var cmd protocol.QueryCommand
	if err := env.DecodeData(&cmd); err != nil {
		h.respondError(sess, protocol.CommandQuery, env.RequestID, "E_MALFORMED", err.Error())
		return protocol.StatusError
	}
	if !cmd.QueryType.Known() {
		h.respondError(sess, protocol.CommandQuery, env.RequestID, "E_QUERY_TYPE", "unknown query type: "+string(cmd.QueryType))
		return protocol.StatusError
	}
	model, err := h.store.GetModel(context.Background(), cmd.ModelID)
	if err != nil {
		h.respondError(sess, protocol.CommandQuery, env.RequestID, "E_NO_MODEL", "unknown model: "+cmd.ModelID)
		return protocol.StatusError
	}
	layer, ok := model.Definition.LayerByID(cmd.LayerID)
	if !ok {
		h.respondError(sess, protocol.CommandQuery, env.RequestID, "E_NO_LAYER", "unknown layer: "+cmd.LayerID)
		return protocol.StatusError
	}

	result, err := layerQueryResult(model, layer, cmd.QueryType)
	if err != nil {
		h.respondError(sess, protocol.CommandQuery, env.RequestID, "E_QUERY", err.Error())
		return protocol.StatusError
	}
	h.respond(sess, protocol.CommandQuery, protocol.QueryResult{
		Status:    protocol.StatusSuccess,
		LayerID:   cmd.LayerID,
		QueryType: cmd.QueryType,
		Result:    result,
	}, env.RequestID)
	return protocol.StatusSuccess
}

func (h *Handler) respond(sess *sessionConn, cmd protocol.CommandType, payload any, requestID string) {
	env, err := protocol.NewResponse(cmd, payload, requestID)
	if err != nil {
		h.log.Error().Err(err).Str("command", string(cmd)).Msg("build response failed")
		return
	}
	if err := sess.send(env); err != nil {
		h.log.Warn().Err(err).Str("command", string(cmd)).Msg("write response failed")
	}
}

func (h *Handler) respondError(sess *sessionConn, cmd protocol.CommandType, requestID, code, message string) {
	h.log.Warn().Str("command", string(cmd)).Str("code", code).Str("detail", message).Msg("command rejected")
	h.respond(sess, cmd, map[string]string{
		"status":    string(protocol.StatusError),
		"errorCode": code,
		"message":   message,
	}, requestID)
}
