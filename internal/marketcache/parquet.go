// Package marketcache caches settled daily bars on disk as Parquet so
// repeated history requests for a symbol do not refetch a year of data from
// the market-data API.
package marketcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"stocktalk/internal/domain"
)

// Cache stores bars in per-symbol, per-year Parquet files.
type Cache struct {
	DataDir string
}

// New creates a Cache rooted at the given data directory.
func New(dataDir string) *Cache {
	return &Cache{DataDir: dataDir}
}

// barRecord is the on-disk Parquet schema for daily bars.
type barRecord struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	TradeCount int64   `parquet:"trade_count"`
	VWAP       float64 `parquet:"vwap"`
}

// Write merges bars into the cache, grouped by year. Existing bars for the
// same timestamp are replaced.
func (c *Cache) Write(symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	groups := make(map[int][]barRecord)
	for _, b := range bars {
		year := b.Timestamp.UTC().Year()
		groups[year] = append(groups[year], barRecord{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  b.Timestamp.UnixMilli(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
			VWAP:       b.VWAP,
		})
	}

	for year, records := range groups {
		path := c.barPath(symbol, year)

		existing, _ := parquet.ReadFile[barRecord](path)
		merged := mergeRecords(existing, records)

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := parquet.WriteFile(path, merged); err != nil {
			return fmt.Errorf("writing bar cache for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// Read returns cached bars for symbol within [start, end], sorted by time.
// Missing year files are skipped; a fully cold cache yields an empty slice.
func (c *Cache) Read(symbol string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		records, err := parquet.ReadFile[barRecord](c.barPath(symbol, year))
		if err != nil {
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:     r.Symbol,
				Timestamp:  ts,
				Open:       r.Open,
				High:       r.High,
				Low:        r.Low,
				Close:      r.Close,
				Volume:     r.Volume,
				TradeCount: r.TradeCount,
				VWAP:       r.VWAP,
			})
		}
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

// Symbols lists all symbols present in the cache.
func (c *Cache) Symbols() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.DataDir, "bars"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// barPath returns the file path for one symbol-year.
// Layout: <dataDir>/bars/<SYMBOL>/<YYYY>.parquet
func (c *Cache) barPath(symbol string, year int) string {
	return filepath.Join(c.DataDir, "bars", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

// mergeRecords deduplicates by timestamp, preferring incoming records, and
// sorts the result chronologically.
func mergeRecords(existing, incoming []barRecord) []barRecord {
	seen := make(map[int64]barRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]barRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
