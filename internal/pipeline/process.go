package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arkik/internal"
	"arkik/internal/config"
	"arkik/internal/metrics"
)

type ProcessingService struct {
	validator *Validator
	cfg       config.Config
	logger    *zap.Logger
}

func NewProcessingService(validator *Validator, cfg config.Config, logger *zap.Logger) *ProcessingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessingService{validator: validator, cfg: cfg, logger: logger}
}

type ProcessResult struct {
	BatchID    string
	PlantID    string
	Rows       int
	Valid      int
	Warning    int
	Error      int
	ReportPath string
	Result     internal.BatchResult
}

// ProcessFile validates a staged sheet and writes its JSON report. An empty
// reportPath puts the report under the configured output directory.
func (s *ProcessingService) ProcessFile(ctx context.Context, plantID, inputPath, reportPath string) (ProcessResult, error) {
	start := time.Now()
	batchID := uuid.NewString()
	logger := s.logger.With(
		zap.String("batch_id", batchID),
		zap.String("plant_id", plantID),
		zap.String("file", filepath.Base(inputPath)),
	)

	rows, err := ReadStagedFile(inputPath)
	if err != nil {
		metrics.BatchesTotal.WithLabelValues(plantID, "unreadable").Inc()
		return ProcessResult{}, err
	}

	result, err := s.validator.ValidateBatch(ctx, plantID, rows)
	if err != nil {
		metrics.BatchesTotal.WithLabelValues(plantID, "failed").Inc()
		logger.Error("batch validation failed", zap.Error(err))
		return ProcessResult{}, err
	}
	metrics.ObserveBatch(plantID, result, time.Since(start))
	metrics.BatchesTotal.WithLabelValues(plantID, "validated").Inc()

	if reportPath == "" {
		reportPath = filepath.Join(s.cfg.OutputDir, reportName(inputPath, batchID))
	}
	counts := result.CountByStatus()
	report := Report{
		BatchID:     batchID,
		PlantID:     plantID,
		SourceFile:  filepath.Base(inputPath),
		GeneratedAt: time.Now().UTC(),
		Summary:     counts,
		BatchResult: result,
	}
	if err := WriteJSONReport(report, reportPath); err != nil {
		return ProcessResult{}, err
	}

	logger.Info("batch report written",
		zap.String("report", reportPath),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return ProcessResult{
		BatchID:    batchID,
		PlantID:    plantID,
		Rows:       len(rows),
		Valid:      counts[internal.StatusValid],
		Warning:    counts[internal.StatusWarning],
		Error:      counts[internal.StatusError],
		ReportPath: reportPath,
		Result:     result,
	}, nil
}

func reportName(inputPath, batchID string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return base + "_" + batchID[:8] + ".json"
}
