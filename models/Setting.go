package models

import "time"

// Setting is one row of the key-value runtime configuration table edited
// from the admin dashboard (signup kill switch, onboarding quiz toggle).
// Reads go through services.Settings, never straight to the table.
type Setting struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Key   string `json:"key" gorm:"size:64;uniqueIndex;not null"`
	Value string `json:"value" gorm:"size:255"`

	UpdatedAt time.Time `json:"updatedAt"`
}
