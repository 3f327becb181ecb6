package repository

import (
	"time"

	"github.com/agrisense/irrigation-backend/internal/db/models"
	"gorm.io/gorm"
)

// AlertRepository records dispatched alert events
type AlertRepository interface {
	Repository
	Insert(event *models.AlertEvent) error
	Since(t time.Time) ([]models.AlertEvent, error)
	CountSince(t time.Time) (int64, error)
}

type alertRepository struct {
	BaseRepository
}

// NewAlertRepository creates a new alert event repository
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *alertRepository) Insert(event *models.AlertEvent) error {
	err := r.GetDB().Create(event).Error
	return r.handleError(err)
}

func (r *alertRepository) Since(t time.Time) ([]models.AlertEvent, error) {
	var events []models.AlertEvent
	err := r.GetDB().Where("time >= ?", t).Order("time asc").Find(&events).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return events, nil
}

func (r *alertRepository) CountSince(t time.Time) (int64, error) {
	var n int64
	err := r.GetDB().Model(&models.AlertEvent{}).Where("time >= ?", t).Count(&n).Error
	if err != nil {
		return 0, r.handleError(err)
	}
	return n, nil
}
