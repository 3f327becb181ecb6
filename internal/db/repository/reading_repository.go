package repository

import (
	"sync"
	"time"

	"github.com/agrisense/irrigation-backend/internal/db/models"
	"gorm.io/gorm"
)

// ReadingRepository defines operations for the rolling sensor dataset.
// Writes are serialized so timestamp ordering is preserved; readers see a
// consistent snapshot as of their read time.
type ReadingRepository interface {
	Repository
	Append(reading *models.SensorReading) error
	Count() (int64, error)
	Latest() (*models.SensorReading, error)
	Window(since time.Time) ([]models.SensorReading, error)
	Recent(limit int) ([]models.SensorReading, error)
	TrimToMax(maxRows int) error
}

// readingRepository implements ReadingRepository
type readingRepository struct {
	BaseRepository
	writeMu sync.Mutex
}

// NewReadingRepository creates a new rolling dataset repository
func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Append inserts one reading. Single-writer discipline: concurrent ingest
// paths (HTTP, WebSocket, MQTT, Kafka) funnel through this mutex.
func (r *readingRepository) Append(reading *models.SensorReading) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	err := r.GetDB().Create(reading).Error
	return r.handleError(err)
}

// Count returns the total number of rows in the rolling dataset
func (r *readingRepository) Count() (int64, error) {
	var n int64
	err := r.GetDB().Model(&models.SensorReading{}).Count(&n).Error
	if err != nil {
		return 0, r.handleError(err)
	}
	return n, nil
}

// Latest returns the most recent reading
func (r *readingRepository) Latest() (*models.SensorReading, error) {
	var reading models.SensorReading
	err := r.GetDB().Order("time desc").Limit(1).First(&reading).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return &reading, nil
}

// Window returns all readings since the given time, oldest first. This is the
// training snapshot; rows appended during a training run are not reflected.
func (r *readingRepository) Window(since time.Time) ([]models.SensorReading, error) {
	var readings []models.SensorReading
	err := r.GetDB().Where("time >= ?", since).Order("time asc").Find(&readings).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return readings, nil
}

// Recent returns the last limit readings, oldest first
func (r *readingRepository) Recent(limit int) ([]models.SensorReading, error) {
	var readings []models.SensorReading
	err := r.GetDB().Order("time desc").Limit(limit).Find(&readings).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	// reverse into chronological order
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
	return readings, nil
}

// TrimToMax drops the oldest rows beyond maxRows. Retention is best-effort;
// a failed trim never blocks ingestion.
func (r *readingRepository) TrimToMax(maxRows int) error {
	if maxRows <= 0 {
		return nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var n int64
	if err := r.GetDB().Model(&models.SensorReading{}).Count(&n).Error; err != nil {
		return r.handleError(err)
	}
	excess := n - int64(maxRows)
	if excess <= 0 {
		return nil
	}

	var cutoff models.SensorReading
	if err := r.GetDB().Order("time asc").Offset(int(excess)).Limit(1).First(&cutoff).Error; err != nil {
		return r.handleError(err)
	}

	err := r.GetDB().Where("time < ?", cutoff.Time).Delete(&models.SensorReading{}).Error
	return r.handleError(err)
}
