package handler

import (
	"errors"
	"net/http"

	"github.com/calderhq/sidechat/internal/api/response"
	"github.com/calderhq/sidechat/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// writeServiceError maps service-layer failures onto the response envelope
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		response.BadRequest(w, "validation_error", ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrSessionClosed):
		response.Conflict(w, "session_closed", "session is closed to new messages")
	case errors.Is(err, domain.ErrTurnInFlight):
		response.Conflict(w, "turn_in_flight", "a turn is already in flight; abort it first")
	default:
		response.InternalError(w, err.Error())
	}
}

// validationMessage flattens validator errors into one readable line
func validationMessage(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		first := validationErrors[0]
		return "invalid field " + first.Field() + ": failed " + first.Tag() + " check"
	}
	return err.Error()
}
