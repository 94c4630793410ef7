// Package eod turns a run's signals into the per-strategy and combined CSV
// tables, and writes the features hand-off file.
package eod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"swing-signals/internal/interfaces"
	"swing-signals/internal/logger"
	"swing-signals/internal/types"
)

const (
	combinedFile = "combined_signals.csv"
	featuresFile = "features.csv"
	signalsFile  = "signals.csv"
)

type Options struct {
	OutputsDir string
	// DocsDir receives a copy of every file when set.
	DocsDir            string
	HistoryDays        int
	FeaturesWindowDays int
}

type Writer struct {
	opts Options
}

var _ interfaces.SignalWriter = (*Writer)(nil)

func NewWriter(opts Options) *Writer {
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 10
	}
	if opts.FeaturesWindowDays <= 0 {
		opts.FeaturesWindowDays = 40
	}
	return &Writer{opts: opts}
}

// StrategyFile is where the table for one strategy lives.
func (w *Writer) StrategyFile(strategy string) string {
	return filepath.Join(w.opts.OutputsDir, strategy, signalsFile)
}

func (w *Writer) CombinedFile() string { return filepath.Join(w.opts.OutputsDir, combinedFile) }
func (w *Writer) FeaturesFile() string { return filepath.Join(w.opts.OutputsDir, featuresFile) }

// WriteSignals merges each strategy's new rows over what is already on
// disk, keeps the most recent HistoryDays distinct dates and rewrites the
// per-strategy files and the combined table. A strategy present with no
// rows still has its file refreshed. Strategy tables on disk that are absent
// from byStrategy are left untouched and still feed the combined table.
func (w *Writer) WriteSignals(ctx context.Context, byStrategy map[string][]types.Signal) (types.WriteResult, error) {
	res := types.WriteResult{RowsByStrategy: make(map[string]int, len(byStrategy))}

	names := make([]string, 0, len(byStrategy))
	for name := range byStrategy {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []types.Signal
	for _, name := range names {
		path := w.StrategyFile(name)
		existing, err := ReadSignals(path)
		if err != nil {
			logger.Warn(ctx, "Discarding unreadable signal history", "path", path, "error", err)
			existing = nil
		}
		table := Truncate(MergeSignals(existing, byStrategy[name]), w.opts.HistoryDays)

		if err := w.writeSignalFile(path, table); err != nil {
			return res, err
		}
		res.Files = append(res.Files, path)
		res.RowsByStrategy[name] = len(table)
		all = append(all, table...)
	}

	carried, err := w.carriedSignals(ctx, byStrategy)
	if err != nil {
		return res, err
	}
	all = append(all, carried...)

	combined := Truncate(MergeSignals(nil, all), w.opts.HistoryDays)
	if err := w.writeSignalFile(w.CombinedFile(), combined); err != nil {
		return res, err
	}
	res.Files = append(res.Files, w.CombinedFile())
	res.CombinedRows = len(combined)
	return res, nil
}

// carriedSignals reads the on-disk tables of strategies that produced no
// table this run, so the combined file keeps their history.
func (w *Writer) carriedSignals(ctx context.Context, byStrategy map[string][]types.Signal) ([]types.Signal, error) {
	paths, err := filepath.Glob(filepath.Join(w.opts.OutputsDir, "*", signalsFile))
	if err != nil {
		return nil, fmt.Errorf("list strategy tables: %w", err)
	}
	sort.Strings(paths)

	var out []types.Signal
	for _, path := range paths {
		name := filepath.Base(filepath.Dir(path))
		if _, ok := byStrategy[name]; ok {
			continue
		}
		rows, err := ReadSignals(path)
		if err != nil {
			logger.Warn(ctx, "Leaving unreadable signal history out of the combined table", "path", path, "error", err)
			continue
		}
		out = append(out, Truncate(rows, w.opts.HistoryDays)...)
	}
	return out, nil
}

// WriteFeatures writes the rows dated within FeaturesWindowDays calendar
// days of the newest row.
func (w *Writer) WriteFeatures(_ context.Context, rows []types.FeatureRow) (string, error) {
	var latest time.Time
	for _, r := range rows {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	cutoff := latest.AddDate(0, 0, -(w.opts.FeaturesWindowDays - 1))

	kept := make([]types.FeatureRow, 0, len(rows))
	for _, r := range rows {
		if !r.Date.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Ticker != kept[j].Ticker {
			return kept[i].Ticker < kept[j].Ticker
		}
		return kept[i].Date.Before(kept[j].Date)
	})

	out := make([]*featureRow, len(kept))
	for i, r := range kept {
		out[i] = toFeatureRow(r)
	}
	b, err := marshal(out, featureHeader)
	if err != nil {
		return "", fmt.Errorf("encode features: %w", err)
	}
	path := w.FeaturesFile()
	if err := w.publish(path, b); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) writeSignalFile(path string, sigs []types.Signal) error {
	rows := make([]*signalRow, len(sigs))
	for i, s := range sigs {
		rows[i] = toSignalRow(s)
	}
	b, err := marshal(rows, signalHeader)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return w.publish(path, b)
}

// publish writes b to path and mirrors it under DocsDir.
func (w *Writer) publish(path string, b []byte) error {
	if err := writeAtomic(path, b); err != nil {
		return err
	}
	if w.opts.DocsDir == "" {
		return nil
	}
	rel, err := filepath.Rel(w.opts.OutputsDir, path)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(w.opts.DocsDir, rel), b)
}

func marshal[T any](rows []*T, header string) ([]byte, error) {
	if len(rows) == 0 {
		return []byte(header), nil
	}
	var buf bytes.Buffer
	if err := gocsv.Marshal(&rows, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// ReadSignals loads a signals CSV. A missing or empty file is no rows.
func ReadSignals(path string) ([]types.Signal, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 || string(b) == signalHeader {
		return nil, nil
	}
	var rows []*signalRow
	if err := gocsv.UnmarshalBytes(b, &rows); err != nil {
		return nil, err
	}
	out := make([]types.Signal, 0, len(rows))
	for _, r := range rows {
		s, err := r.signal()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// MergeSignals overlays fresh on existing keyed by (Date, Ticker, Strategy)
// and returns the rows sorted.
func MergeSignals(existing, fresh []types.Signal) []types.Signal {
	byKey := make(map[string]types.Signal, len(existing)+len(fresh))
	for _, s := range existing {
		byKey[s.Key()] = s
	}
	for _, s := range fresh {
		byKey[s.Key()] = s
	}
	out := make([]types.Signal, 0, len(byKey))
	for _, s := range byKey {
		out = append(out, s)
	}
	types.SortSignals(out)
	return out
}

// Truncate keeps rows whose date is among the most recent days distinct
// dates. sigs must already be sorted.
func Truncate(sigs []types.Signal, days int) []types.Signal {
	if days <= 0 || len(sigs) == 0 {
		return sigs
	}
	seen := 0
	var cutoff time.Time
	for i := len(sigs) - 1; i >= 0; i-- {
		if i == len(sigs)-1 || !sigs[i].Date.Equal(sigs[i+1].Date) {
			seen++
			if seen > days {
				break
			}
			cutoff = sigs[i].Date
		}
	}
	for i, s := range sigs {
		if !s.Date.Before(cutoff) {
			return sigs[i:]
		}
	}
	return nil
}
