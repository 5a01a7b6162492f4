package routes

import (
	"errors"

	"gatherly-server/services"
	"gatherly-server/utils"

	"github.com/kataras/iris/v12"
)

var (
	participation *services.ParticipationService
	settings      *services.SettingsService
)

// Initialize wires the route handlers to their services. Called once from
// main before the server starts listening.
func Initialize(p *services.ParticipationService, s *services.SettingsService) {
	participation = p
	settings = s
}

// respondEngineError maps participation engine errors to HTTP responses.
func respondEngineError(ctx iris.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEventNotFound), errors.Is(err, services.ErrRecordNotFound):
		utils.CreateNotFound(ctx)
	case errors.Is(err, services.ErrDuplicateRegistration):
		utils.JSONError(ctx, iris.StatusConflict, "duplicate_registration", err.Error())
	case errors.Is(err, services.ErrCapacityExceeded):
		utils.JSONError(ctx, iris.StatusConflict, "capacity_exceeded", err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		utils.JSONError(ctx, iris.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, services.ErrEventNotAcceptingSignups):
		utils.JSONError(ctx, iris.StatusUnprocessableEntity, "event_not_accepting_signups", err.Error())
	case errors.Is(err, services.ErrEventIsFree):
		utils.JSONError(ctx, iris.StatusBadRequest, "event_is_free", err.Error())
	case errors.Is(err, services.ErrRefundFailed):
		utils.JSONError(ctx, iris.StatusBadGateway, "refund_failed", err.Error())
	case errors.Is(err, services.ErrPaymentGateway):
		utils.JSONError(ctx, iris.StatusBadGateway, "payment_gateway_error", err.Error())
	default:
		utils.CreateInternalServerError(ctx)
	}
}
