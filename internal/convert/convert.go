// Package convert turns gzipped CSV book dumps into binary snapshot files.
package convert

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	errs "main/internal/errors"
	"main/internal/schema"
	"main/internal/snapshot"
)

var (
	ErrMissingRecvColumn = errors.New("convert: input lacks ts_recv_ns column")
	ErrBadRecvTimestamp  = errors.New("convert: unparseable ts_recv_ns")
)

// Options configures a conversion. Zero scales default to the schema scales.
type Options struct {
	PriceScale int64
	QtyScale   int64
}

func (o Options) withDefaults() Options {
	if o.PriceScale == 0 {
		o.PriceScale = schema.PriceScale
	}
	if o.QtyScale == 0 {
		o.QtyScale = schema.QtyScale
	}
	return o
}

// Stats summarises one conversion run.
type Stats struct {
	Rows           uint64
	Records        uint64
	SentinelCells  uint64
	OrderFixups    uint64
	TrailingFixups uint64
}

// columnMap holds the resolved CSV column indices; -1 means absent.
type columnMap struct {
	tsRecvNs  int
	tsEventMs int
	bidP      [schema.Depth]int
	bidQ      [schema.Depth]int
	askP      [schema.Depth]int
	askQ      [schema.Depth]int
}

func resolveColumns(header []string) (columnMap, error) {
	m := columnMap{tsRecvNs: -1, tsEventMs: -1}
	for i := range m.bidP {
		m.bidP[i], m.bidQ[i], m.askP[i], m.askQ[i] = -1, -1, -1, -1
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	if i, ok := index["ts_recv_ns"]; ok {
		m.tsRecvNs = i
	} else {
		return m, ErrMissingRecvColumn
	}
	if i, ok := index["ts_event_ms"]; ok {
		m.tsEventMs = i
	}
	for lvl := 0; lvl < schema.Depth; lvl++ {
		if i, ok := index[fmt.Sprintf("bid_p%d", lvl+1)]; ok {
			m.bidP[lvl] = i
		}
		if i, ok := index[fmt.Sprintf("bid_q%d", lvl+1)]; ok {
			m.bidQ[lvl] = i
		}
		if i, ok := index[fmt.Sprintf("ask_p%d", lvl+1)]; ok {
			m.askP[lvl] = i
		}
		if i, ok := index[fmt.Sprintf("ask_q%d", lvl+1)]; ok {
			m.askQ[lvl] = i
		}
	}
	return m, nil
}

var maxFixed = decimal.NewFromInt(math.MaxInt64)

// parseFixed parses a decimal cell exactly and truncates it to the given
// fixed-point scale. float64 never enters the path.
func parseFixed(cell string, scale int64) (int64, bool) {
	if cell == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(cell)
	if err != nil {
		return 0, false
	}
	scaled := d.Mul(decimal.NewFromInt(scale)).Truncate(0)
	if scaled.IsNegative() || scaled.Cmp(maxFixed) > 0 {
		return 0, false
	}
	return scaled.IntPart(), true
}

// File converts input (a gzipped CSV) into a snapshot file at outputPath.
// The output appears atomically: a failed run leaves no snapshot behind.
func File(inputPath, outputPath string, opts Options) (Stats, error) {
	opts = opts.withDefaults()

	in, err := os.Open(inputPath)
	if err != nil {
		return Stats{}, err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return Stats{}, errs.Wrap(err, "convert: open gzip stream")
	}
	defer gz.Close()

	w, err := snapshot.NewWriter(outputPath, snapshot.NewFileHeader(opts.PriceScale, opts.QtyScale))
	if err != nil {
		return Stats{}, err
	}

	stats, err := stream(gz, w, opts)
	if err != nil {
		w.Abort()
		return stats, err
	}
	if err := w.Close(); err != nil {
		return stats, err
	}
	return stats, nil
}

func stream(in io.Reader, w *snapshot.Writer, opts Options) (Stats, error) {
	var stats Stats
	r := csv.NewReader(in)
	r.ReuseRecord = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return stats, errs.Wrap(err, "convert: read csv header")
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return stats, err
	}

	var rec schema.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errs.Wrapf(err, "convert: read csv row %d", stats.Rows+1)
		}
		stats.Rows++

		if err := buildRecord(&rec, row, cols, opts, &stats); err != nil {
			return stats, errs.Wrapf(err, "convert: row %d", stats.Rows)
		}
		if err := w.Append(&rec); err != nil {
			return stats, err
		}
		stats.Records++
	}
	return stats, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func buildRecord(rec *schema.Record, row []string, cols columnMap, opts Options, stats *Stats) error {
	ts, err := strconv.ParseInt(cellAt(row, cols.tsRecvNs), 10, 64)
	if err != nil || ts < 0 {
		return ErrBadRecvTimestamp
	}
	rec.TsRecvNs = ts

	rec.TsEventMs = 0
	if cols.tsEventMs >= 0 {
		if v, err := strconv.ParseInt(cellAt(row, cols.tsEventMs), 10, 64); err == nil {
			rec.TsEventMs = v
		}
	}

	for lvl := 0; lvl < schema.Depth; lvl++ {
		rec.Bids[lvl] = schema.NullBidLevel()
		p, okP := parseFixed(cellAt(row, cols.bidP[lvl]), opts.PriceScale)
		q, okQ := parseFixed(cellAt(row, cols.bidQ[lvl]), opts.QtyScale)
		if okP && okQ && p > 0 && q > 0 {
			rec.Bids[lvl] = schema.Level{PriceQ: p, QtyQ: q}
		} else if cols.bidP[lvl] >= 0 || cols.bidQ[lvl] >= 0 {
			stats.SentinelCells++
		}

		rec.Asks[lvl] = schema.NullAskLevel()
		p, okP = parseFixed(cellAt(row, cols.askP[lvl]), opts.PriceScale)
		q, okQ = parseFixed(cellAt(row, cols.askQ[lvl]), opts.QtyScale)
		if okP && okQ && p > 0 && p != schema.AskNullPriceQ && q > 0 {
			rec.Asks[lvl] = schema.Level{PriceQ: p, QtyQ: q}
		} else if cols.askP[lvl] >= 0 || cols.askQ[lvl] >= 0 {
			stats.SentinelCells++
		}
	}

	normalizeSide(rec, true, stats)
	normalizeSide(rec, false, stats)
	return nil
}

// normalizeSide enforces the producer contract on one side: active levels
// form a prefix and prices never move back toward the touch (equal adjacent
// prices are kept). The first offending level and everything behind it
// collapse to sentinels.
func normalizeSide(rec *schema.Record, bids bool, stats *Stats) {
	cut := schema.Depth
	for lvl := 0; lvl < schema.Depth; lvl++ {
		var active bool
		if bids {
			active = schema.BidActive(rec.Bids[lvl])
		} else {
			active = schema.AskActive(rec.Asks[lvl])
		}
		if !active {
			cut = lvl
			break
		}
		if lvl > 0 {
			var inOrder bool
			if bids {
				inOrder = rec.Bids[lvl].PriceQ <= rec.Bids[lvl-1].PriceQ
			} else {
				inOrder = rec.Asks[lvl].PriceQ >= rec.Asks[lvl-1].PriceQ
			}
			if !inOrder {
				logs.Warnf("ts %d: out-of-order level dropped at depth %d", rec.TsRecvNs, lvl)
				stats.OrderFixups++
				cut = lvl
				break
			}
		}
	}
	for lvl := cut; lvl < schema.Depth; lvl++ {
		if bids {
			if schema.BidActive(rec.Bids[lvl]) {
				stats.TrailingFixups++
			}
			rec.Bids[lvl] = schema.NullBidLevel()
		} else {
			if schema.AskActive(rec.Asks[lvl]) {
				stats.TrailingFixups++
			}
			rec.Asks[lvl] = schema.NullAskLevel()
		}
	}
}
