package services

import (
	"strconv"

	"gatherly-server/models"

	"gorm.io/gorm"
)

// SettingsService is the typed view over the admin-edited key-value settings
// table. Handlers consult it for runtime toggles; the participation engine
// itself never reads ambient flags.
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Setting keys in use.
const (
	SettingSignupsEnabled = "signups_enabled"
	SettingQuizEnabled    = "onboarding_quiz_enabled"
)

func (s *SettingsService) String(key, def string) string {
	var setting models.Setting
	if err := s.db.Where("key = ?", key).First(&setting).Error; err != nil {
		// Missing key, or a connectivity hiccup; fall back to the default
		// rather than failing the request.
		return def
	}
	return setting.Value
}

func (s *SettingsService) Bool(key string, def bool) bool {
	raw := s.String(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
