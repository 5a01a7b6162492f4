package routes

import (
	"gatherly-server/models"
	"gatherly-server/storage"
	"gatherly-server/utils"

	"github.com/kataras/iris/v12"
)

// ListEvents returns published, publicly visible events. Location and
// private details never appear here; the per-viewer projection lives on the
// detail endpoint.
func ListEvents(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	if err := storage.DB.Model(&models.Event{}).
		Where("status = ? AND visibility = ?", models.EventStatusPublished, models.EventVisibilityPublic).
		Count(&total).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var events []models.Event
	if err := storage.DB.Model(&models.Event{}).
		Where("status = ? AND visibility = ?", models.EventStatusPublished, models.EventVisibilityPublic).
		Select("id, name, starts_at, ends_at, capacity, is_unlimited_capacity, requires_approval, ticket_price_cents, currency, status, visibility").
		Order("starts_at ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&events).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.JSONPage(ctx, events, page, perPage, total)
}

// GetEventView returns the event detail filtered for the requesting user:
// location masking, private details and the roster all depend on the
// viewer's current participation status.
func GetEventView(ctx iris.Context) {
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

	view, err := participation.GetEventView(eventID, userID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": view})
}

// GetEventCapacity returns a fresh capacity snapshot.
func GetEventCapacity(ctx iris.Context) {
	eventID := ctx.Params().GetUintDefault("id", 0)
	if eventID == 0 {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid event ID"})
		return
	}

	event, err := participation.GetEvent(eventID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	spotsLeft, err := participation.SpotsLeft(event)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"success":   true,
		"spotsLeft": spotsLeft, // null means unlimited
	})
}
