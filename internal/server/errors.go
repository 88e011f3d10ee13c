package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/santa/internal/santa"
	"github.com/gin-gonic/gin"
)

const (
	errorKindInvalidRequest = "invalid_request"
	errorKindUnauthorized   = "unauthorized"
	errorKindInternal       = "internal_error"
)

// errorKinds is ordered: the specific lifecycle failures wrap ErrInvalidState
// and must be matched before it.
var errorKinds = []struct {
	target error
	status int
	kind   string
}{
	{santa.ErrGuildNotFound, http.StatusNotFound, "guild_not_found"},
	{santa.ErrGuildAlreadyExists, http.StatusConflict, "guild_already_exists"},
	{santa.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{santa.ErrAlreadyParticipating, http.StatusConflict, "already_participating"},
	{santa.ErrNotParticipating, http.StatusNotFound, "not_participating"},
	{santa.ErrInsufficientParticipants, http.StatusUnprocessableEntity, "insufficient_participants"},
	{santa.ErrNotAssignedAsSender, http.StatusNotFound, "not_assigned_as_sender"},
	{santa.ErrParticipantNotFound, http.StatusNotFound, "participant_not_found"},
	{santa.ErrAdminRequired, http.StatusForbidden, "admin_required"},
	{santa.ErrInvalidGuildID, http.StatusBadRequest, errorKindInvalidRequest},
	{santa.ErrInvalidUserID, http.StatusBadRequest, errorKindInvalidRequest},
}

func classifyError(err error) (int, string) {
	for _, candidate := range errorKinds {
		if errors.Is(err, candidate.target) {
			return candidate.status, candidate.kind
		}
	}
	return http.StatusInternalServerError, errorKindInternal
}

func serviceCode(err error) string {
	var serviceErr *santa.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}

func abortWithError(c *gin.Context, err error) {
	status, kind := classifyError(err)
	body := gin.H{"error": kind}
	if code := serviceCode(err); code != "" {
		body["code"] = code
	}
	c.AbortWithStatusJSON(status, body)
}
