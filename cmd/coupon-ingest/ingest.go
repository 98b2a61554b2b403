package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const bloomFPR = 0.001

// row is one parsed CSV record with its origin for error reporting.
type row struct {
	file string
	line int
	in   coupon.Input
}

type stats struct {
	Read       int
	Invalid    int
	Duplicates int
	Existing   int
	Created    atomic.Int64
}

type ingester struct {
	repo    coupon.Repository
	lg      *zap.Logger
	workers int
	dryRun  bool
}

// Run reads every file concurrently, drops duplicates and known codes and
// inserts the rest.
func (ing *ingester) Run(ctx context.Context, files []string) (*stats, error) {
	st := &stats{}

	perFile := make([][]row, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			rows, err := readFile(gctx, path)
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			perFile[i] = rows
			ing.lg.Info("Parsed file", zap.String("file", path), zap.Int("rows", len(rows)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var pending []row
	for _, rows := range perFile {
		for _, r := range rows {
			st.Read++
			if err := r.in.Check(); err != nil {
				st.Invalid++
				ing.lg.Warn("Invalid coupon row", zap.String("file", r.file), zap.Int("line", r.line), zap.Error(err))
				continue
			}
			if _, dup := seen[r.in.Code]; dup {
				st.Duplicates++
				continue
			}
			seen[r.in.Code] = struct{}{}
			pending = append(pending, r)
		}
	}

	fresh, err := ing.dropExisting(ctx, pending)
	if err != nil {
		return nil, err
	}
	st.Existing = len(pending) - len(fresh)

	if ing.dryRun {
		ing.lg.Info("Dry run, nothing written", zap.Int("would_create", len(fresh)))
		return st, nil
	}
	return st, ing.insert(ctx, fresh, st)
}

// dropExisting filters out codes the store already has. Existing codes are
// loaded into a bloom filter once; only its positives are confirmed with a
// lookup.
func (ing *ingester) dropExisting(ctx context.Context, rows []row) ([]row, error) {
	existing, err := ing.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	if len(existing) == 0 {
		return rows, nil
	}

	filter := bloom.NewWithEstimates(uint(len(existing)), bloomFPR)
	for _, c := range existing {
		filter.AddString(c.Code)
	}

	out := rows[:0:0]
	for _, r := range rows {
		if filter.TestString(r.in.Code) {
			_, err := ing.repo.FindByCode(ctx, r.in.Code)
			if err == nil {
				continue
			}
			if !errors.Is(err, coupon.ErrCodeNotFound) {
				return nil, errors.Wrapf(err, "lookup %s", r.in.Code)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (ing *ingester) insert(ctx context.Context, rows []row, st *stats) error {
	svc := coupon.NewService(ing.repo)
	workers := ing.workers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, r := range rows {
		g.Go(func() error {
			_, err := svc.Create(gctx, r.in)
			switch {
			case errors.Is(err, coupon.ErrDuplicateCode):
				// Created concurrently by someone else.
				return nil
			case err != nil:
				return errors.Wrapf(err, "%s:%d: create %s", r.file, r.line, r.in.Code)
			}
			if n := st.Created.Add(1); n%1000 == 0 {
				ing.lg.Info("Insert progress", zap.Int64("created", n), zap.Int("total", len(rows)))
			}
			return nil
		})
	}
	return g.Wait()
}

func readFile(ctx context.Context, path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return parseCSV(ctx, path, r)
}

var requiredColumns = []string{"code", "kind"}

func parseCSV(ctx context.Context, name string, r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, errors.Errorf("header is missing column %q", c)
		}
	}
	cr.FieldsPerRecord = len(header)

	var rows []row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		in, err := parseRecord(rec, cols)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		rows = append(rows, row{file: name, line: line, in: in})
	}
}

func parseRecord(rec []string, cols map[string]int) (coupon.Input, error) {
	field := func(name string) string {
		if i, ok := cols[name]; ok {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	in := coupon.Input{
		Code:     coupon.NormalizeCode(field("code")),
		Kind:     coupon.Kind(strings.ToLower(field("kind"))),
		Value:    decimal.Zero,
		MinOrder: decimal.Zero,
		Active:   true,
	}
	var err error
	if v := field("value"); v != "" {
		if in.Value, err = decimal.NewFromString(v); err != nil {
			return in, errors.Wrap(err, "value")
		}
	}
	if v := field("min_order"); v != "" {
		if in.MinOrder, err = decimal.NewFromString(v); err != nil {
			return in, errors.Wrap(err, "min_order")
		}
	}
	if v := field("max_uses"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, errors.Wrap(err, "max_uses")
		}
		if n > 0 {
			in.MaxUses = &n
		}
	}
	if v := field("expires_at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return in, errors.Wrap(err, "expires_at")
		}
		in.ExpiresAt = &t
	}
	return in, nil
}
