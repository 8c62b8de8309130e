package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/efham/efham-backend/internal/middleware"
	"github.com/efham/efham-backend/internal/model"
	"github.com/efham/efham-backend/internal/service"
	"github.com/efham/efham-backend/internal/session"
	ws "github.com/efham/efham-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live quiz attempt: autosave upstream, a server-driven
// countdown downstream, and grading on submit or expiry.
type WSHandler struct {
	quizService    *service.QuizService
	sessionService *service.QuizSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(quizService *service.QuizService, sessionService *service.QuizSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		quizService:    quizService,
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// QuizStream godoc
// WS /ws/v1/student/quizzes/:quiz_id/stream
// Upgrades to WebSocket. The server pushes a tick every second with the
// authoritative remaining time; at zero the attempt is auto-submitted and
// an expired event carries the result. One connection holds one controller
// for its whole life, so the countdown never resets on the client's behalf.
func (h *WSHandler) QuizStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quiz ID"})
		return
	}

	quiz, err := h.quizService.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "quiz not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	studentID := claims.StudentID
	ctx := context.Background()

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("quiz_id", quizID.String()).
		Logger()

	ctrl := h.sessionService.NewAttemptController(quiz, studentID)
	outcome, err := ctrl.Initialize(ctx, time.Now())
	if err != nil {
		wsLog.Error().Err(err).Msg("Initialize failed")
		ws.WriteError(conn, "failed to start session")
		return
	}

	if outcome.View == nil {
		// Already graded (possibly just now, if the deadline passed while
		// the student was away).
		h.writeGraded(conn, wsLog, ws.EventExpired, studentID, outcome.ResultID)
		return
	}

	wsLog.Info().Msg("Student connected")
	ws.WriteTyped(conn, ws.TickResponse{
		Event:            ws.EventTick,
		RemainingSeconds: outcome.View.RemainingSeconds,
	})

	// One goroutine reads; the main loop owns the controller and all writes.
	// done releases a reader blocked mid-send when this handler returns with
	// a message still in flight.
	done := make(chan struct{})
	defer close(done)
	inbound, readErr := ws.ReadLoop(conn, done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			remaining, err := ctrl.Tick(ctx, time.Now())
			if err != nil {
				wsLog.Error().Err(err).Msg("Tick failed")
				continue
			}
			if remaining <= 0 {
				h.writeGraded(conn, wsLog, ws.EventExpired, studentID, ctrl.ResultID())
				return
			}
			ws.WriteTyped(conn, ws.TickResponse{
				Event:            ws.EventTick,
				RemainingSeconds: remaining.Seconds(),
			})

		case msg, ok := <-inbound:
			if !ok {
				err := <-readErr
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}

			switch msg.Action {
			case ws.ActionAutosave:
				h.handleAutosave(ctx, conn, ctrl, quiz, &msg)
			case ws.ActionSubmit:
				id, err := ctrl.Submit(ctx, time.Now(), false)
				if err != nil {
					wsLog.Error().Err(err).Msg("Submit failed")
					ws.WriteError(conn, "submit failed")
					continue
				}
				h.writeGraded(conn, wsLog, ws.EventGraded, studentID, id)
				return
			case ws.ActionPing:
				ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			default:
				wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
				ws.WriteError(conn, "unknown action: "+string(msg.Action))
			}
		}
	}
}

// handleAutosave merges one answer into the attempt.
func (h *WSHandler) handleAutosave(ctx context.Context, conn *websocket.Conn, ctrl *session.Controller, quiz *model.Quiz, msg *ws.RequestPayload) {
	if msg.QuestionID == "" || msg.Selected == "" {
		ws.WriteError(conn, "question_id and selected are required")
		return
	}

	// The id must belong to the definition; this also keeps arbitrary
	// client strings out of the Redis answer hash.
	if quiz.QuestionByID(msg.QuestionID) == nil {
		ws.WriteError(conn, "unknown question_id")
		return
	}

	if err := ctrl.RecordAnswer(ctx, msg.QuestionID, msg.Selected, time.Now()); err != nil {
		ws.WriteError(conn, "session is closed")
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{
		Event:      ws.EventSaved,
		QuestionID: msg.QuestionID,
	})
}

// writeGraded sends the final event with the graded score before the
// connection is closed.
func (h *WSHandler) writeGraded(conn *websocket.Conn, wsLog zerolog.Logger, event ws.Event, studentID int, resultID uuid.UUID) {
	resp := ws.GradedResponse{Event: event, ResultID: resultID.String()}

	result, err := h.sessionService.GetResult(context.Background(), studentID, resultID)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Result lookup for graded event failed")
	} else {
		resp.Score = result.Score
		resp.TotalPoints = result.TotalPoints
	}

	wsLog.Info().Str("result_id", resultID.String()).Str("event", string(event)).Msg("Attempt graded over stream")
	ws.WriteTyped(conn, resp)
}
