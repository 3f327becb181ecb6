package repository

import "gorm.io/gorm"

// RepositoryFactory creates and manages all repositories. Repositories are
// shared so the reading repository's write mutex covers every ingest path.
type RepositoryFactory struct {
	db           *gorm.DB
	readingRepo  ReadingRepository
	alertRepo    AlertRepository
	trainingRepo TrainingRepository
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(db *gorm.DB) *RepositoryFactory {
	return &RepositoryFactory{
		db: db,
	}
}

// Reading returns the rolling dataset repository
func (f *RepositoryFactory) Reading() ReadingRepository {
	if f.readingRepo == nil {
		f.readingRepo = NewReadingRepository(f.db)
	}
	return f.readingRepo
}

// Alert returns the alert event repository
func (f *RepositoryFactory) Alert() AlertRepository {
	if f.alertRepo == nil {
		f.alertRepo = NewAlertRepository(f.db)
	}
	return f.alertRepo
}

// Training returns the training run repository
func (f *RepositoryFactory) Training() TrainingRepository {
	if f.trainingRepo == nil {
		f.trainingRepo = NewTrainingRepository(f.db)
	}
	return f.trainingRepo
}
