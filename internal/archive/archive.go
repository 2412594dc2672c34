package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"undergame/internal/game"
)

// RoundRecord is one resolved round, persisted for audit and replay views.
type RoundRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	RoundNumber  int            `gorm:"index;not null" json:"round_number"`
	CrisisUpdate string         `gorm:"type:text" json:"crisis_update"`
	Actions      datatypes.JSON `json:"actions"`
	PointAwards  datatypes.JSON `json:"point_awards"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Store persists resolved rounds through gorm. Implements game.Archiver.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveRound appends one resolved round to the archive.
func (s *Store) SaveRound(ctx context.Context, round int, crisis string, actions []game.Action, awards []game.PointAward) error {
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}
	awardsJSON, err := json.Marshal(awards)
	if err != nil {
		return fmt.Errorf("failed to encode awards: %w", err)
	}
	rec := RoundRecord{
		RoundNumber:  round,
		CrisisUpdate: crisis,
		Actions:      datatypes.JSON(actionsJSON),
		PointAwards:  datatypes.JSON(awardsJSON),
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// Rounds returns the archived rounds in play order.
func (s *Store) Rounds(ctx context.Context) ([]RoundRecord, error) {
	var records []RoundRecord
	err := s.db.WithContext(ctx).Order("round_number asc, id asc").Find(&records).Error
	return records, err
}

// Round returns one archived round by number.
func (s *Store) Round(ctx context.Context, number int) (*RoundRecord, error) {
	var rec RoundRecord
	err := s.db.WithContext(ctx).Where("round_number = ?", number).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Clear drops all archived rounds. Used when a new game starts.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&RoundRecord{}).Error
}
