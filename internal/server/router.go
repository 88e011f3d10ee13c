package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/santa/internal/auth"
	"github.com/MarcoPoloResearchLab/santa/internal/santa"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionClaimsContextKey  = "santa_session_claims"
	guildIDContextKey        = "santa_guild_id"
	defaultHeartbeatInterval = 30 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingSantaService     = errors.New("santa service dependency required")
)

// SessionValidator authenticates incoming requests.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// ProfileRecorder remembers the display name a session presents.
type ProfileRecorder interface {
	Remember(userID, displayName string) error
}

type Dependencies struct {
	SessionValidator  SessionValidator
	SantaService      *santa.Service
	Profiles          ProfileRecorder
	Realtime          *RealtimeDispatcher
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.SantaService == nil {
		return nil, errMissingSantaService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		sessions:  deps.SessionValidator,
		santa:     deps.SantaService,
		profiles:  deps.Profiles,
		realtime:  deps.Realtime,
		heartbeat: heartbeat,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	if deps.Realtime != nil {
		protected.GET("/notifications/stream", handler.handleNotificationStream)
	}

	guild := protected.Group("/guilds/:guild_id")
	guild.Use(handler.resolveGuild)
	guild.GET("", handler.handleStatus)
	guild.POST("/participants/me", handler.handleJoin)
	guild.DELETE("/participants/me", handler.handleLeave)
	guild.PUT("/wish", handler.handleWish)
	guild.PUT("/gift", handler.handleSubmitGift)
	guild.GET("/recipient", handler.handleRevealRecipient)
	guild.GET("/gift", handler.handleMyGift)

	moderated := guild.Group("")
	moderated.Use(handler.requireModerator)
	moderated.POST("/event", handler.handleStart)
	moderated.DELETE("/event", handler.handleReset)
	moderated.PUT("/comment", handler.handleComment)
	moderated.PUT("/budget", handler.handleBudget)
	moderated.GET("/participants", handler.handleParticipants)
	moderated.POST("/assign", handler.handleAssign)
	moderated.POST("/unassign", handler.handleUnassign)
	moderated.POST("/distribute", handler.handleDistribute)
	moderated.POST("/participants/:user_id/resend", handler.handleSendTo)
	moderated.GET("/history", handler.handleHistory)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
		MaxAge:          12 * time.Hour,
	})
}

type httpHandler struct {
	sessions  SessionValidator
	santa     *santa.Service
	profiles  ProfileRecorder
	realtime  *RealtimeDispatcher
	heartbeat time.Duration
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errorKindUnauthorized})
		return
	}
	if h.profiles != nil {
		if err := h.profiles.Remember(claims.UserID, claims.UserDisplayName); err != nil {
			h.logger.Warn("failed to remember user profile", zap.String("user_id", claims.UserID), zap.Error(err))
		}
	}
	c.Set(sessionClaimsContextKey, claims)
	c.Next()
}

func (h *httpHandler) resolveGuild(c *gin.Context) {
	guildID, err := santa.NewGuildID(c.Param("guild_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorKindInvalidRequest})
		return
	}
	c.Set(guildIDContextKey, guildID)
	c.Next()
}

func (h *httpHandler) requireModerator(c *gin.Context) {
	claims := sessionClaims(c)
	if !claims.Manages(guildFromContext(c).String()) {
		abortWithError(c, santa.ErrAdminRequired)
		return
	}
	c.Next()
}

func sessionClaims(c *gin.Context) auth.SessionClaims {
	value, ok := c.Get(sessionClaimsContextKey)
	if !ok {
		return auth.SessionClaims{}
	}
	claims, _ := value.(auth.SessionClaims)
	return claims
}

func guildFromContext(c *gin.Context) santa.GuildID {
	value, _ := c.Get(guildIDContextKey)
	guildID, _ := value.(santa.GuildID)
	return guildID
}

func callerID(c *gin.Context) santa.UserID {
	return santa.UserID(sessionClaims(c).UserID)
}

func (h *httpHandler) respondError(c *gin.Context, operation santa.Operation, err error) {
	status, _ := classifyError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("guild request failed",
			zap.String("operation", string(operation)),
			zap.String("guild_id", guildFromContext(c).String()),
			zap.Error(err))
	}
	abortWithError(c, err)
}

func bindValidated[T interface{ Validate() error }](c *gin.Context, request T) bool {
	if err := c.ShouldBindJSON(request); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorKindInvalidRequest})
		return false
	}
	if err := request.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorKindInvalidRequest, "details": err.Error()})
		return false
	}
	return true
}

func (h *httpHandler) handleStatus(c *gin.Context) {
	status, err := h.santa.Status(c.Request.Context(), guildFromContext(c))
	if err != nil {
		h.respondError(c, santa.OperationStatus, err)
		return
	}
	c.JSON(http.StatusOK, toStatusPayload(status))
}

func (h *httpHandler) handleStart(c *gin.Context) {
	status, err := h.santa.Start(c.Request.Context(), guildFromContext(c), callerID(c))
	if err != nil {
		h.respondError(c, santa.OperationStart, err)
		return
	}
	c.JSON(http.StatusCreated, toStatusPayload(status))
}

func (h *httpHandler) handleReset(c *gin.Context) {
	if err := h.santa.Reset(c.Request.Context(), guildFromContext(c), callerID(c)); err != nil {
		h.respondError(c, santa.OperationReset, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleComment(c *gin.Context) {
	var request commentRequestPayload
	if !bindValidated(c, &request) {
		return
	}
	if err := h.santa.UpdateComment(c.Request.Context(), guildFromContext(c), callerID(c), request.Comment); err != nil {
		h.respondError(c, santa.OperationComment, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleBudget(c *gin.Context) {
	var request budgetRequestPayload
	if !bindValidated(c, &request) {
		return
	}
	if err := h.santa.UpdateBudget(c.Request.Context(), guildFromContext(c), callerID(c), request.Budget); err != nil {
		h.respondError(c, santa.OperationBudget, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleJoin(c *gin.Context) {
	if err := h.santa.Join(c.Request.Context(), guildFromContext(c), callerID(c)); err != nil {
		h.respondError(c, santa.OperationJoin, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleLeave(c *gin.Context) {
	if err := h.santa.Leave(c.Request.Context(), guildFromContext(c), callerID(c)); err != nil {
		h.respondError(c, santa.OperationLeave, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleWish(c *gin.Context) {
	var request wishRequestPayload
	if !bindValidated(c, &request) {
		return
	}
	if err := h.santa.SetWish(c.Request.Context(), guildFromContext(c), callerID(c), request.Wish); err != nil {
		h.respondError(c, santa.OperationWish, err)
		return
	}
	c.JSON(http.StatusOK, acceptedResponsePayload{Accepted: true, RedactSource: true})
}

func (h *httpHandler) handleParticipants(c *gin.Context) {
	participants, err := h.santa.Participants(c.Request.Context(), guildFromContext(c))
	if err != nil {
		h.respondError(c, santa.OperationParticipants, err)
		return
	}
	response := participantsResponsePayload{Participants: make([]participantPayload, 0, len(participants))}
	for _, participant := range participants {
		response.Participants = append(response.Participants, participantPayload{
			UserID:  participant.UserID.String(),
			HasWish: participant.HasWish,
			HasGift: participant.HasGift,
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleAssign(c *gin.Context) {
	result, err := h.santa.Assign(c.Request.Context(), guildFromContext(c), callerID(c))
	if err != nil {
		h.respondError(c, santa.OperationAssign, err)
		return
	}
	c.JSON(http.StatusOK, assignmentResponsePayload{RoundID: result.RoundID, ParticipantCount: result.ParticipantCount})
}

func (h *httpHandler) handleUnassign(c *gin.Context) {
	if err := h.santa.Unassign(c.Request.Context(), guildFromContext(c), callerID(c)); err != nil {
		h.respondError(c, santa.OperationUnassign, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDistribute(c *gin.Context) {
	if err := h.santa.Distribute(c.Request.Context(), guildFromContext(c), callerID(c)); err != nil {
		h.respondError(c, santa.OperationDistribute, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSubmitGift(c *gin.Context) {
	var request giftRequestPayload
	if !bindValidated(c, &request) {
		return
	}
	if err := h.santa.SubmitGift(c.Request.Context(), guildFromContext(c), callerID(c), request.Gift); err != nil {
		h.respondError(c, santa.OperationSubmitGift, err)
		return
	}
	c.JSON(http.StatusOK, acceptedResponsePayload{Accepted: true, RedactSource: true})
}

func (h *httpHandler) handleRevealRecipient(c *gin.Context) {
	reveal, err := h.santa.RevealRecipient(c.Request.Context(), guildFromContext(c), callerID(c))
	if err != nil {
		h.respondError(c, santa.OperationRevealRecipient, err)
		return
	}
	c.JSON(http.StatusOK, recipientResponsePayload{
		RecipientID: reveal.RecipientID.String(),
		Wish:        reveal.Wish,
		HasWish:     reveal.HasWish,
		Comment:     reveal.Comment,
		Budget:      reveal.Budget,
	})
}

func (h *httpHandler) handleMyGift(c *gin.Context) {
	gift, err := h.santa.MyGift(c.Request.Context(), guildFromContext(c), callerID(c))
	if err != nil {
		h.respondError(c, santa.OperationMyGift, err)
		return
	}
	c.JSON(http.StatusOK, giftResponsePayload{Gift: gift.Gift, HasGift: gift.HasGift})
}

func (h *httpHandler) handleSendTo(c *gin.Context) {
	target, err := santa.NewUserID(c.Param("user_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorKindInvalidRequest})
		return
	}
	guildID := guildFromContext(c)
	caller := santa.Caller{
		GuildID: guildID,
		UserID:  callerID(c),
		Admin:   sessionClaims(c).Manages(guildID.String()),
	}
	if err := h.santa.SendTo(c.Request.Context(), caller, target); err != nil {
		h.respondError(c, santa.OperationSendTo, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleHistory(c *gin.Context) {
	changes, err := h.santa.History(c.Request.Context(), guildFromContext(c))
	if err != nil {
		h.respondError(c, santa.OperationHistory, err)
		return
	}
	response := historyResponsePayload{Changes: make([]changePayload, 0, len(changes))}
	for _, change := range changes {
		response.Changes = append(response.Changes, changePayload{
			ChangeID:         change.ChangeID,
			RoundID:          change.RoundID,
			Operation:        string(change.Operation),
			ActorID:          change.ActorID,
			FromState:        string(change.FromState),
			ToState:          string(change.ToState),
			AppliedAtSeconds: change.AppliedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, response)
}

func toStatusPayload(status santa.GuildStatus) statusResponsePayload {
	return statusResponsePayload{
		GuildID:          status.GuildID.String(),
		RoundID:          status.RoundID,
		State:            string(status.State),
		Comment:          status.Comment,
		Budget:           status.Budget,
		ParticipantCount: status.ParticipantCount,
	}
}
