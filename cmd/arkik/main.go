package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"arkik/internal/config"
	"arkik/internal/listener"
	"arkik/internal/logging"
	"arkik/internal/pipeline"
	"arkik/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger, err := logging.New(cfg)
	must(err)
	defer func() { _ = logger.Sync() }()

	db, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "db:migrate":
		must(db.Migrate())
		fmt.Printf("migrations applied driver=%s\n", db.Driver())
	case "validate":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		plant := fs.String("plant", cfg.PlantID, "plant id")
		input := fs.String("input", "", "staged remision sheet (.xlsx)")
		output := fs.String("output", "", "json report path")
		review := fs.String("review", "", "optional review sheet path (.xlsx)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		must(cfg.Require("--plant / ARKIK_PLANT_ID", *plant))
		migrateIfEnabled(cfg, db, logger)

		proc := newProcessor(cfg, db, logger)
		res, err := proc.ProcessFile(ctx, *plant, *input, *output)
		must(err)
		if *review != "" {
			must(pipeline.ExportRowsToXLSX(res.Result.Validated, *review))
		}
		fmt.Printf("validated batch=%s rows=%d valid=%d warning=%d error=%d report=%s\n",
			res.BatchID, res.Rows, res.Valid, res.Warning, res.Error, res.ReportPath)
	case "listen":
		migrateIfEnabled(cfg, db, logger)
		s := listener.NewService(newProcessor(cfg, db, logger), cfg, logger)
		must(s.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func newProcessor(cfg config.Config, db *storage.DB, logger *zap.Logger) *pipeline.ProcessingService {
	validator := pipeline.NewValidator(db, logger, cfg.SuggestionLimit)
	return pipeline.NewProcessingService(validator, cfg, logger)
}

func migrateIfEnabled(cfg config.Config, db *storage.DB, logger *zap.Logger) {
	if !cfg.DBMigrate || db.Driver() != "sqlite" {
		return
	}
	if err := db.Migrate(); err != nil {
		logger.Warn("auto-migration failed", zap.Error(err))
	}
}

func usage() {
	fmt.Println("usage: arkik <command>")
	fmt.Println("commands:")
	fmt.Println("  db:migrate")
	fmt.Println("  validate --plant=P1 --input=rows.xlsx [--output=result.json] [--review=review.xlsx]")
	fmt.Println("  listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
