// Command drip-codegen mints single-use drip campaign codes. Previously
// exported code batches (gzip, one code per line) are loaded into bloom
// filters so fresh batches never collide with codes already sent out. New
// codes are stored as definitions and exported as a gzip file for the email
// campaign tool.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/tortilleria/promo-service/internal/domain/discount"
	"github.com/tortilleria/promo-service/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000

	// maxCollisionRetries bounds code generation when the exports already
	// contain a large share of the code space.
	maxCollisionRetries = 100
)

func main() {
	var (
		databaseURL string
		kindFlag    string
		count       int
		validDays   int
		exportsDir  string
		outFile     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&kindFlag, "kind", "10OFF", "drip kind: 10OFF, 5OFF, or FREESHIP")
	flag.IntVar(&count, "count", 1000, "number of codes to generate")
	flag.IntVar(&validDays, "valid-days", 30, "days until generated codes expire")
	flag.StringVar(&exportsDir, "exports-dir", "exports", "directory with previous code exports (*.gz)")
	flag.StringVar(&outFile, "out", "", "output file (default exports/drip-<kind>-<date>.gz)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	kind := discount.DripKind(kindFlag)
	switch kind {
	case discount.Drip10Off, discount.Drip5Off, discount.DripFreeShip:
	default:
		slog.Error("unknown drip kind", slog.String("kind", kindFlag))
		os.Exit(1)
	}

	if outFile == "" {
		outFile = filepath.Join(exportsDir,
			fmt.Sprintf("drip-%s-%s.gz", kindFlag, time.Now().UTC().Format("20060102")))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, kind, count, validDays, exportsDir, outFile); err != nil {
		slog.Error("drip code generation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("drip code generation completed successfully")
}

func run(ctx context.Context, databaseURL string, kind discount.DripKind, count, validDays int, exportsDir, outFile string) error {
	exports, err := filepath.Glob(filepath.Join(exportsDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list exports")
	}

	slog.Info("loading previous exports", slog.Int("files", len(exports)))

	filters, err := buildBloomFilters(ctx, exports)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	codes, err := generateCodes(kind, count, filters)
	if err != nil {
		return errors.Wrap(err, "generate codes")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := repository.NewDefinitionRepository(pool)
	validFor := time.Duration(validDays) * 24 * time.Hour

	if err := writeDefinitions(ctx, repo, codes, kind, validFor); err != nil {
		return errors.Wrap(err, "write definitions")
	}

	if err := exportCodes(outFile, codes); err != nil {
		return errors.Wrap(err, "export codes")
	}

	slog.Info("batch exported", slog.String("file", outFile), slog.Int("codes", len(codes)))
	return nil
}

// buildBloomFilters creates one bloom filter per export file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if discount.IsDripCode(code) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("export scan progress",
						slog.String("file", filepath.Base(path)),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for %s", path)
		}

		slog.Info("export scanned",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// generateCodes mints count fresh codes, skipping any that a previous export
// may already contain. Bloom false positives only cost a retry.
func generateCodes(kind discount.DripKind, count int, filters []*bloom.BloomFilter) ([]string, error) {
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)

	for len(codes) < count {
		var code string
		retries := 0
		for {
			c, err := discount.NewDripCode(kind)
			if err != nil {
				return nil, errors.Wrap(err, "new drip code")
			}

			if _, dup := seen[c]; !dup && !anyFilterHas(filters, c) {
				code = c
				break
			}

			retries++
			if retries >= maxCollisionRetries {
				return nil, errors.New("code space too saturated, giving up")
			}
		}

		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	return codes, nil
}

func anyFilterHas(filters []*bloom.BloomFilter, code string) bool {
	for _, f := range filters {
		if f.TestString(code) {
			return true
		}
	}
	return false
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeDefinitions stores one single-use definition per generated code.
func writeDefinitions(ctx context.Context, repo *repository.DefinitionRepository, codes []string, kind discount.DripKind, validFor time.Duration) error {
	slog.Info("writing definitions to database", slog.Int("count", len(codes)))

	now := time.Now().UTC()
	for i, code := range codes {
		def, err := discount.DripDefinition(code, kind, now, validFor)
		if err != nil {
			return errors.Wrapf(err, "build definition for %s", code)
		}

		if err := repo.Create(ctx, def); err != nil {
			return errors.Wrapf(err, "create definition %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}

// exportCodes writes the batch as a gzip file, one code per line.
func exportCodes(path string, codes []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create dir for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() { _ = f.Close() }()

	gz := pgzip.NewWriter(f)
	for _, code := range codes {
		if _, err := gz.Write([]byte(code + "\n")); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	if err := gz.Close(); err != nil {
		return errors.Wrapf(err, "close gzip writer for %s", path)
	}

	return f.Close()
}
