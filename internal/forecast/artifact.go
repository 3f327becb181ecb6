package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact file names inside the artifact directory
const (
	univariateFile   = "arima_model.json"
	multivariateFile = "arimax_model.json"
	reportFile       = "model_report.json"
)

// Report summarizes the most recent training run. Metric pointers are nil
// when the corresponding variant failed to fit.
type Report struct {
	Rows        int       `json:"rows"`
	TrainRows   int       `json:"train_rows"`
	TestRows    int       `json:"test_rows"`
	ExogCols    []string  `json:"exog_cols"`
	ArimaOrder  *Order    `json:"arima_order"`
	ArimaRMSE   *float64  `json:"arima_rmse"`
	ArimaMAPE   *float64  `json:"arima_mape"`
	ArimaxOrder *Order    `json:"arimax_order"`
	ArimaxRMSE  *float64  `json:"arimax_rmse"`
	ArimaxMAPE  *float64  `json:"arimax_mape"`
	BestModel   string    `json:"best_model"`
	TrainedAt   time.Time `json:"trained_at"`
}

// ArtifactStore persists trained models and the report under one directory.
// Every write goes through a temp file and rename so readers never observe a
// half-written artifact.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore creates the artifact directory if needed
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

// SaveModel persists one model variant
func (s *ArtifactStore) SaveModel(m *Model) error {
	name := univariateFile
	if m.Variant == VariantMultivariate {
		name = multivariateFile
	}
	return s.writeJSON(name, m)
}

// SaveReport persists the training report
func (s *ArtifactStore) SaveReport(r *Report) error {
	return s.writeJSON(reportFile, r)
}

// LoadModel loads one model variant; (nil, nil) when no artifact exists yet
func (s *ArtifactStore) LoadModel(variant Variant) (*Model, error) {
	name := univariateFile
	if variant == VariantMultivariate {
		name = multivariateFile
	}
	var m Model
	ok, err := s.readJSON(name, &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

// LoadReport loads the last report; (nil, nil) when no report exists yet
func (s *ArtifactStore) LoadReport() (*Report, error) {
	var r Report
	ok, err := s.readJSON(reportFile, &r)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func (s *ArtifactStore) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	final := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp artifact: %w", err)
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace artifact %s: %w", name, err)
	}
	return nil
}

func (s *ArtifactStore) readJSON(name string, v interface{}) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read artifact %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal artifact %s: %w", name, err)
	}
	return true, nil
}
