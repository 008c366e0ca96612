package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"recordnorm/internal/batch"
	"recordnorm/internal/cleaner"
	"recordnorm/internal/config"
	"recordnorm/internal/logger"
	"recordnorm/internal/parser"
	"recordnorm/internal/report"
	"recordnorm/internal/rules"
	"recordnorm/internal/storage"
	"recordnorm/internal/topic"
	"recordnorm/internal/validator"
	"recordnorm/pkg/records"
)

const (
	batchResultFile = "batch_result.json"
	errorReportFile = "error_report.json"
	tableReportFile = "table_report.json"
)

type options struct {
	configPath string
	records    []string
	table      string
	fieldMap   map[string]string
	outDir     string
	verbose    bool
}

func parseFlags(args []string) (options, error) {
	var (
		o       options
		recs    string
		mapping string
	)
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "YAML or JSON config path (defaults apply when empty)")
	fs.StringVar(&recs, "records", "", "comma-separated JSON/NDJSON record files")
	fs.StringVar(&o.table, "table", "", "CSV file to run through the tabular pipeline")
	fs.StringVar(&mapping, "map", "", "comma-separated source:target column pairs for -table")
	fs.StringVar(&o.outDir, "out", "out", "output directory")
	fs.BoolVar(&o.verbose, "v", false, "enable debug logs")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	o.records = splitList(recs)
	if len(o.records) == 0 && o.table == "" {
		return o, errors.New("nothing to do: set -records and/or -table")
	}
	fm, err := parseFieldMap(mapping)
	if err != nil {
		return o, err
	}
	o.fieldMap = fm
	return o, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFieldMap parses "src:dst,src2:dst2". Validation of the pairs against
// the data happens in the cleaner.
func parseFieldMap(s string) (map[string]string, error) {
	pairs := splitList(s)
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		src, dst, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("-map: %q is not source:target", p)
		}
		src = strings.TrimSpace(src)
		if _, dup := out[src]; dup {
			return nil, fmt.Errorf("-map: column %q mapped twice", src)
		}
		out[src] = strings.TrimSpace(dst)
	}
	return out, nil
}

// decodeFiles decodes every record file concurrently and concatenates the
// results in argument order.
func decodeFiles(ctx context.Context, paths []string) ([]records.UnifiedRecord, error) {
	parts := make([][]records.UnifiedRecord, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			recs, err := parser.DecodeRecords(f, filepath.Base(p))
			if err != nil {
				return err
			}
			parts[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []records.UnifiedRecord
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

func newOrchestrator(cfg config.Config, log *zap.Logger) *batch.Orchestrator {
	v := validator.New(cfg.ValidatorOptions())
	copts := cfg.CleanerOptions()
	return batch.New(
		topic.NewLinker(topic.NewRegistry(), cfg.AnchorSource()),
		cleaner.NewTextCleaner(copts),
		rules.New(cfg.RulesOptions()),
		batch.WithLogger(log),
		batch.WithJob(cfg.Job),
		batch.WithInference(cfg.InferenceOptions()),
		batch.WithTable(cleaner.NewTableCleaner(copts, v), v),
	)
}

func run(ctx context.Context, cfg config.Config, opts options) error {
	log := logger.FromContext(ctx)
	orch := newOrchestrator(cfg, log)

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if len(opts.records) > 0 {
		recs, err := decodeFiles(ctx, opts.records)
		if err != nil {
			return fmt.Errorf("decode records: %w", err)
		}
		res, err := orch.Run(ctx, recs)
		if err != nil {
			return err
		}
		rep := report.FromBatch(res)
		if err := writeJSON(filepath.Join(opts.outDir, batchResultFile), res); err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(opts.outDir, errorReportFile), rep); err != nil {
			return err
		}
		if err := store(ctx, log, cfg, res, rep); err != nil {
			return err
		}
	}

	if opts.table != "" {
		f, err := os.Open(opts.table)
		if err != nil {
			return err
		}
		tbl, err := parser.DecodeCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("decode table: %w", err)
		}
		res, err := orch.RunTable(ctx, batch.TableInput{Rows: tbl.Rows, FieldMap: opts.fieldMap})
		if err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(opts.outDir, tableReportFile), res); err != nil {
			return err
		}
	}
	return nil
}

// store writes the batch to the configured sink, if any.
func store(ctx context.Context, log *zap.Logger, cfg config.Config, res batch.Result, rep report.ErrorReport) error {
	if cfg.Storage.Kind == "" || cfg.Storage.Kind == "none" {
		return nil
	}
	scfg := storage.Config{
		Kind:          cfg.Storage.Kind,
		DSN:           cfg.Storage.DSN,
		RecordsTable:  cfg.Storage.RecordsTable,
		FailuresTable: cfg.Storage.FailuresTable,
		BatchSize:     cfg.Storage.BatchSize,
	}
	repo, err := storage.Open(ctx, scfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if _, err := storage.Save(ctx, log, repo, scfg, res, rep); err != nil {
		return err
	}
	return nil
}

func writeJSON(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return report.WriteJSON(f, v)
}
