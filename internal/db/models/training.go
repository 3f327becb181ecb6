package models

import (
	"time"
)

// TrainingRun records one retrain cycle and its outcome metrics. The
// authoritative artifact files live on disk; this table is the audit trail.
type TrainingRun struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	StartedAt     time.Time `gorm:"type:timestamptz;not null" json:"started_at"`
	FinishedAt    time.Time `gorm:"type:timestamptz" json:"finished_at"`
	Trigger       string    `gorm:"type:varchar(20)" json:"trigger"` // "interval", "row_count", "manual"
	Rows          int       `json:"rows"`
	TrainRows     int       `json:"train_rows"`
	TestRows      int       `json:"test_rows"`
	UnivarRMSE    *float64  `gorm:"column:univar_rmse" json:"arima_rmse"`
	UnivarMAPE    *float64  `gorm:"column:univar_mape" json:"arima_mape"`
	MultivarRMSE  *float64  `gorm:"column:multivar_rmse" json:"arimax_rmse"`
	MultivarMAPE  *float64  `gorm:"column:multivar_mape" json:"arimax_mape"`
	BestModel     string    `gorm:"type:varchar(10)" json:"best_model"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// TableName overrides the table name for TrainingRun
func (TrainingRun) TableName() string {
	return "training_runs"
}
