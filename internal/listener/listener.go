package listener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"arkik/internal/config"
	"arkik/internal/pipeline"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Processor validates one staged batch file.
type Processor interface {
	ProcessFile(ctx context.Context, plantID, inputPath, reportPath string) (pipeline.ProcessResult, error)
}

// Service polls the inbox directory for staged sheets and validates each one.
type Service struct {
	processor Processor
	cfg       config.Config
	logger    *zap.Logger
}

func NewService(processor Processor, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{processor: processor, cfg: cfg, logger: logger}
}

func (s *Service) Run(ctx context.Context) error {
	if s.cfg.MetricsAddr != "" {
		srv := s.metricsServer()
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	interval := time.Duration(s.cfg.ListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.logger.Info("listener started", zap.String("inbox", s.cfg.InboxDir), zap.Duration("interval", interval))

	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.logger.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) metricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// RunCycle processes every pending sheet in the inbox once and returns how
// many were validated.
func (s *Service) RunCycle(ctx context.Context) (int, error) {
	files, err := pendingFiles(s.cfg.InboxDir)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		name := filepath.Base(path)
		plantID := plantFromFilename(name, s.cfg.PlantID)
		if plantID == "" {
			s.logger.Warn("no plant id for batch file", zap.String("file", name))
			if err := moveTo(path, failedDir); err != nil {
				return processed, err
			}
			continue
		}

		res, err := s.processor.ProcessFile(ctx, plantID, path, "")
		if err != nil {
			s.logger.Error("batch file failed", zap.String("file", name), zap.Error(err))
			if err := moveTo(path, failedDir); err != nil {
				return processed, err
			}
			continue
		}
		if err := moveTo(path, processedDir); err != nil {
			return processed, err
		}
		processed++
		s.logger.Info("batch file processed",
			zap.String("file", name),
			zap.String("batch_id", res.BatchID),
			zap.Int("rows", res.Rows),
			zap.Int("valid", res.Valid),
			zap.Int("warning", res.Warning),
			zap.Int("error", res.Error),
		)
	}
	return processed, nil
}

func pendingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), ".xlsx") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// plantFromFilename reads the plant id from a "<plant>__<name>.xlsx" file
// name, falling back to the configured plant.
func plantFromFilename(name, fallback string) string {
	if plant, _, ok := strings.Cut(name, "__"); ok && strings.TrimSpace(plant) != "" {
		return strings.TrimSpace(plant)
	}
	return fallback
}

func moveTo(path, sub string) error {
	dir := filepath.Join(filepath.Dir(path), sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(target)
		target = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(target, ext), time.Now().UnixNano(), ext)
	}
	return os.Rename(path, target)
}
