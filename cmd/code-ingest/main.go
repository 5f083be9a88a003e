// Command code-ingest loads coupon codes from gzip-compressed code dumps and
// attaches them to an existing discount. Vendors ship several dump files and
// only codes present in at least two of them are trusted, so the ingest runs
// two passes: one to build a bloom filter per file, one to cross-check.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/openmerce/promo-engine/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// fileCodes holds candidate codes found in a single dump file during pass 2,
// keyed by code with a bitmask of the files that contained it.
type fileCodes struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
		discountID  string
		fileCount   int
		maxUses     int
		expiresIn   time.Duration
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing codebaseN.gz dump files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&discountID, "discount-id", "", "discount to attach the ingested codes to")
	flag.IntVar(&fileCount, "file-count", 3, "number of dump files to cross-check")
	flag.IntVar(&maxUses, "max-uses", 0, "per-code redemption cap (0 for unlimited)")
	flag.DurationVar(&expiresIn, "expires-in", 0, "code lifetime from now (0 for no expiry)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if discountID == "" {
		slog.Error("--discount-id is required")
		os.Exit(1)
	}
	if fileCount < 2 {
		slog.Error("--file-count must be at least 2 for cross-checking")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := ingestOptions{
		dataDir:    dataDir,
		discountID: discountID,
		fileCount:  fileCount,
	}
	if maxUses > 0 {
		opts.maxUses = &maxUses
	}
	if expiresIn > 0 {
		t := time.Now().Add(expiresIn)
		opts.expiresAt = &t
	}

	if err := run(ctx, databaseURL, opts); err != nil {
		slog.Error("code ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("code ingest completed successfully")
}

type ingestOptions struct {
	dataDir    string
	discountID string
	fileCount  int
	maxUses    *int
	expiresAt  *time.Time
}

func run(ctx context.Context, databaseURL string, opts ingestOptions) error {
	files := make([]string, opts.fileCount)
	for i := range opts.fileCount {
		files[i] = filepath.Join(opts.dataDir, fmt.Sprintf("codebase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build one bloom filter per file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: keep codes appearing in 2+ files.
	slog.Info("pass 2: cross-checking codes")

	validCodes, err := findValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCodes(ctx, pool, opts, validCodes); err != nil {
		return errors.Wrap(err, "write codes to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
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
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each file and checks codes against OTHER files'
// bloom filters. A code is valid if it appears in 2 or more files.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileCodes, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileCodes,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", count),
				)
			}

			// Check if this code appears in any OTHER file's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileCodes{candidates: candidates}
		return nil
	}
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
		fn(strings.TrimSpace(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

const insertCodeSQL = `INSERT INTO discount_codes (id, discount_id, code, expires_at, max_uses)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING`

// writeCodes inserts all valid codes bound to the target discount. Codes
// already present in the table are left untouched.
func writeCodes(ctx context.Context, pool *pgxpool.Pool, opts ingestOptions, codes []string) error {
	slog.Info("writing codes to database",
		slog.Int("count", len(codes)),
		slog.String("discount_id", opts.discountID),
	)

	for i, code := range codes {
		_, err := pool.Exec(ctx, insertCodeSQL,
			uuid.New().String(), opts.discountID, code, opts.expiresAt, opts.maxUses,
		)
		if err != nil {
			return errors.Wrapf(err, "insert code %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
