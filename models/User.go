package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is the slim projection of the identity service's account record that
// this service needs: display data for rosters, the role for RBAC, and push
// delivery preferences. Credentials and sessions live elsewhere.
type User struct {
	ID uint `json:"id" gorm:"primaryKey"`

	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" gorm:"uniqueIndex"`
	AvatarURL string `json:"avatarURL"`

	Role string `json:"role" gorm:"type:varchar(20);default:user;index"` // user, admin, super_admin

	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
