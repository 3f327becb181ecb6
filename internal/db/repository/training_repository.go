package repository

import (
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"gorm.io/gorm"
)

// TrainingRepository persists the audit trail of retrain cycles
type TrainingRepository interface {
	Repository
	Insert(run *models.TrainingRun) error
	Latest() (*models.TrainingRun, error)
}

type trainingRepository struct {
	BaseRepository
}

// NewTrainingRepository creates a new training run repository
func NewTrainingRepository(db *gorm.DB) TrainingRepository {
	return &trainingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *trainingRepository) Insert(run *models.TrainingRun) error {
	err := r.GetDB().Create(run).Error
	return r.handleError(err)
}

func (r *trainingRepository) Latest() (*models.TrainingRun, error) {
	var run models.TrainingRun
	err := r.GetDB().Order("started_at desc").Limit(1).First(&run).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return &run, nil
}
