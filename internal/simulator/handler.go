package simulator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"casino-client/internal/auth"
	"casino-client/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler exposes the engine over the wire protocol: a websocket
// endpoint for the game channel and a small HTTP surface for round
// history.
type Handler struct {
	engine *Engine
	tokens *auth.TokenService
	log    *logrus.Entry
}

func NewHandler(engine *Engine, tokens *auth.TokenService, logger *logrus.Logger) *Handler {
	return &Handler{
		engine: engine,
		tokens: tokens,
		log:    logger.WithField("component", "simulator-handler"),
	}
}

func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", h.HandleWebSocket)

	api := router.Group("/api")
	api.Use(h.authMiddleware())
	{
		api.GET("/rounds", h.GetRounds)
	}

	return router
}

func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		}

		claims, err := h.tokens.Validate(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("player_id", claims.PlayerID)
		c.Next()
	}
}

func (h *Handler) GetRounds(c *gin.Context) {
	playerID := c.GetString("player_id")

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	rounds, err := h.engine.PlayerRounds(playerID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rounds"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	claims, err := h.tokens.Validate(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.log.WithField("player_id", claims.PlayerID).Info("player connected")

	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		h.dispatch(claims.PlayerID, conn, &env)
	}
}

// dispatch handles one request: the ack goes out first, then any
// out-of-band events it triggered, preserving send order.
func (h *Handler) dispatch(playerID string, conn *websocket.Conn, env *models.Envelope) {
	switch env.Type {
	case models.MsgGetSession:
		info, err := h.engine.GetSession(playerID, env.Game)
		h.reply(conn, env, info, err)

	case models.MsgPlaceBet:
		var p models.PlaceBetPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.reply(conn, env, nil, err)
			return
		}
		if env.Game == models.GameTypeCoinflip {
			ack, result, err := h.engine.PlaceFlipBet(playerID, &p)
			h.reply(conn, env, ack, err)
			if err == nil {
				h.push(conn, env.Game, models.MsgFlipResult, result)
			}
			return
		}
		ack, err := h.engine.PlaceDiceBet(playerID, &p)
		h.reply(conn, env, ack, err)

	case models.MsgSessionNext:
		var p models.SessionNextPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.reply(conn, env, nil, err)
			return
		}
		ended, err := h.engine.SessionNext(playerID, p.Option)
		h.reply(conn, env, nil, err)
		if err == nil && ended != nil {
			h.push(conn, env.Game, models.MsgGameEnded, ended)
		}

	case models.MsgEndSession:
		ended, err := h.engine.EndSession(playerID, env.Game)
		h.reply(conn, env, nil, err)
		if err == nil {
			h.push(conn, env.Game, models.MsgGameEnded, ended)
		}

	default:
		h.reply(conn, env, nil, &models.ValidationError{Field: "type", Reason: "unknown message type"})
	}
}

func (h *Handler) reply(conn *websocket.Conn, req *models.Envelope, payload any, err error) {
	ack := models.Envelope{
		ID:   req.ID,
		Type: models.MsgAck,
		Game: req.Game,
	}
	if err != nil {
		ack.Status = models.AckError
		ack.Message = err.Error()
	} else {
		ack.Status = models.AckSuccess
		if payload != nil {
			data, merr := json.Marshal(payload)
			if merr != nil {
				h.log.WithError(merr).Error("failed to marshal ack payload")
				ack.Status = models.AckError
				ack.Message = "internal error"
			} else {
				ack.Payload = data
			}
		}
	}
	if werr := conn.WriteJSON(&ack); werr != nil {
		h.log.WithError(werr).Warn("failed to write ack")
	}
}

func (h *Handler) push(conn *websocket.Conn, game models.GameType, msgType models.MsgType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal event payload")
		return
	}
	env := models.Envelope{Type: msgType, Game: game, Payload: data}
	if err := conn.WriteJSON(&env); err != nil {
		h.log.WithError(err).Warn("failed to write event")
	}
}
