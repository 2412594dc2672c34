package user

import (
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string `gorm:"size:128;not null"`
	Role         Role   `gorm:"type:varchar(10);not null;default:'user'" json:"role"`
	// ParticipantID binds this account to the scenario participant it plays.
	ParticipantID string    `gorm:"size:64" json:"participant_id"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
