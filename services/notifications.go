package services

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"gatherly-server/models"
	"gatherly-server/utils"

	"gorm.io/gorm"
)

// NotificationService handles in-app notification rows and push delivery
// for participation lifecycle changes.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// NotifyParticipant records an in-app notification and pushes it to the
// user's devices. The row is written even when push delivery fails; push is
// best-effort.
func (ns *NotificationService) NotifyParticipant(userID uint, kind, title, message string, record *models.EventParticipant) error {
	notification := models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		RefType: "participant",
	}
	if record != nil {
		notification.RefID = record.ID
	}
	if err := ns.db.Create(&notification).Error; err != nil {
		return err
	}

	tokens, err := ns.getUserPushTokens(userID)
	if err != nil {
		// Disabled notifications or no registered devices; the in-app row
		// is enough.
		return nil
	}

	data := map[string]string{
		"type": kind,
		"id":   strconv.FormatUint(uint64(notification.RefID), 10),
	}
	if record != nil {
		data["eventId"] = strconv.FormatUint(uint64(record.EventID), 10)
	}

	var lastError error
	for _, token := range tokens {
		if err := utils.SendPushNotification(token, title, message, data); err != nil {
			log.Printf("Failed to send notification to token %s: %v", token, err)
			lastError = err
		}
	}
	return lastError
}

// getUserPushTokens retrieves all push tokens for a user
func (ns *NotificationService) getUserPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := ns.db.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %v", err)
	}

	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil, fmt.Errorf("user has notifications disabled or no tokens")
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push tokens: %v", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("user has no push tokens")
	}

	return tokens, nil
}
