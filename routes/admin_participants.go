package routes

import (
	"gatherly-server/models"
	"gatherly-server/utils"

	"github.com/kataras/iris/v12"
)

// AdminListParticipants returns an event's participation records for the
// approval screen, optionally filtered by ?status=.
func AdminListParticipants(ctx iris.Context) {
	eventID := ctx.Params().GetUintDefault("id", 0)
	if eventID == 0 {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid event ID"})
		return
	}

	statusFilter := models.ParticipationStatus(ctx.URLParam("status"))
	if statusFilter != "" && !statusFilter.Valid() {
		utils.JSONError(ctx, iris.StatusBadRequest, "bad_status", "unknown status filter")
		return
	}

	if _, err := participation.GetEvent(eventID); err != nil {
		respondEngineError(ctx, err)
		return
	}

	records, err := participation.ListByEvent(eventID, statusFilter)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": records})
}

// AdminApproveParticipant confirms a pending or waitlisted registration.
// Fails with capacity_exceeded when the event is already full; the admin
// has to waitlist instead.
func AdminApproveParticipant(ctx iris.Context) {
	recordID := ctx.Params().GetUintDefault("id", 0)
	if recordID == 0 {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid participant ID"})
		return
	}

	record, err := participation.Approve(recordID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	utils.Audit(ctx, "participant.approve", "event_participant", recordID, nil, record)
	ctx.JSON(iris.Map{"success": true, "data": record})
}

// AdminRejectParticipant declines a registration. Paid registrations are
// refunded as part of the same operation; if the refund fails the rejection
// does not happen.
func AdminRejectParticipant(ctx iris.Context) {
	recordID := ctx.Params().GetUintDefault("id", 0)
	if recordID == 0 {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid participant ID"})
		return
	}

	record, err := participation.Reject(ctx.Request().Context(), recordID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	utils.Audit(ctx, "participant.reject", "event_participant", recordID, nil, record)
	ctx.JSON(iris.Map{"success": true, "data": record})
}

// AdminWaitlistParticipant parks a pending registration on the waitlist,
// releasing its seat.
func AdminWaitlistParticipant(ctx iris.Context) {
	recordID := ctx.Params().GetUintDefault("id", 0)
	if recordID == 0 {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid participant ID"})
		return
	}

	record, err := participation.Waitlist(recordID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	utils.Audit(ctx, "participant.waitlist", "event_participant", recordID, nil, record)
	ctx.JSON(iris.Map{"success": true, "data": record})
}

type ReopenRequest struct {
	Status models.ParticipationStatus `json:"status" validate:"required"`
}

// AdminReopenParticipant is the administrative override: it moves a record
// (including terminal ones) into pending, waitlisted or approved.
func AdminReopenParticipant(ctx iris.Context) {
	recordID := ctx.Params().GetUintDefault("id", 0)
	if recordID == 0 {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "Invalid participant ID"})
		return
	}

	var request ReopenRequest
	if err := ctx.ReadJSON(&request); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	record, err := participation.Reopen(recordID, request.Status)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	utils.Audit(ctx, "participant.reopen", "event_participant", recordID, nil, record)
	ctx.JSON(iris.Map{"success": true, "data": record})
}
