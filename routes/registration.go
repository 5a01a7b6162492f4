package routes

import (
	"gatherly-server/services"
	"gatherly-server/utils"

	"github.com/kataras/iris/v12"
)

type RegisterRequest struct {
	Answers []services.AnswerInput `json:"answers" validate:"dive"`
}

// RegisterForEvent submits a registration. Free events land in pending (or
// approved when the event skips approval); paid events return a checkout
// URL and wait for the payment webhook.
func RegisterForEvent(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StatusCode(iris.StatusUnauthorized)
		ctx.JSON(iris.Map{"message": "User not authenticated"})
		return
	}

	eventID := ctx.Params().GetUintDefault("id", 0)
	if eventID == 0 {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid event ID"})
		return
	}

	if !settings.Bool(services.SettingSignupsEnabled, true) {
		utils.JSONError(ctx, iris.StatusServiceUnavailable, "signups_disabled", "signups are temporarily paused")
		return
	}

	var request RegisterRequest
	if ctx.GetContentLength() > 0 {
		if err := ctx.ReadJSON(&request); err != nil {
			utils.HandleValidationErrors(err, ctx)
			return
		}
	}

	// Answers are only collected while the registration quiz is on.
	if !settings.Bool(services.SettingQuizEnabled, true) {
		request.Answers = nil
	}

	result, err := participation.Register(ctx.Request().Context(), eventID, userID, request.Answers)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{
		"success":     true,
		"data":        result.Record,
		"checkoutUrl": result.CheckoutURL,
	})
}

// GetMyRegistrations lists the requesting user's registrations.
func GetMyRegistrations(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StatusCode(iris.StatusUnauthorized)
		ctx.JSON(iris.Map{"message": "User not authenticated"})
		return
	}

	records, err := participation.ListByUser(userID)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": records})
}

// GetUserRegistrations lists the registrations of the user named in the
// path. UserIDMiddleware has already verified the id against the token.
func GetUserRegistrations(ctx iris.Context) {
	userID := ctx.Params().GetUintDefault("id", 0)
	if userID == 0 {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid user ID"})
		return
	}

	records, err := participation.ListByUser(userID)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": records})
}

// AbandonCheckout lets a user walk away from an unfinished paid checkout,
// releasing the reserved seat. Only pending_payment records can be
// abandoned; everything later is an admin decision.
func AbandonCheckout(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StatusCode(iris.StatusUnauthorized)
		ctx.JSON(iris.Map{"message": "User not authenticated"})
		return
	}

	eventID := ctx.Params().GetUintDefault("id", 0)
	if eventID == 0 {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid event ID"})
		return
	}

	if err := participation.AbandonPayment(eventID, userID); err != nil {
		respondEngineError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"success": true, "message": "Checkout abandoned"})
}
