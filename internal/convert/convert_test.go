package convert

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"main/internal/schema"
	"main/internal/snapshot"
)

func writeGzCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gz := gzip.NewWriter(file)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestFileConvertsDecimalCells(t *testing.T) {
	dir := t.TempDir()
	in := writeGzCSV(t, dir, "ticks.csv.gz", strings.Join([]string{
		"ts_recv_ns,ts_event_ms,bid_p1,bid_q1,bid_p2,bid_q2,ask_p1,ask_q1",
		"1000,1,100.5,2,99.25,3,100.75,1.5",
		"2000,2,100.5,2.000000019,,,101,4",
	}, "\n") + "\n")
	out := filepath.Join(dir, "ticks.snap")

	stats, err := File(in, out, Options{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if stats.Rows != 2 || stats.Records != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	r, err := snapshot.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}

	rec := r.Next()
	if rec.TsRecvNs != 1000 || rec.TsEventMs != 1 {
		t.Fatalf("timestamps: %+v", rec)
	}
	if rec.Bids[0].PriceQ != 10050000000 || rec.Bids[0].QtyQ != 200000000 {
		t.Fatalf("bid0 = %+v", rec.Bids[0])
	}
	if rec.Bids[1].PriceQ != 9925000000 {
		t.Fatalf("bid1 = %+v", rec.Bids[1])
	}
	if rec.Asks[0].PriceQ != 10075000000 || rec.Asks[0].QtyQ != 150000000 {
		t.Fatalf("ask0 = %+v", rec.Asks[0])
	}
	if schema.BidActive(rec.Bids[2]) {
		t.Fatal("bid2 should be sentinel")
	}

	rec = r.Next()
	// Sub-scale digits truncate rather than round.
	if rec.Bids[0].QtyQ != 200000001 {
		t.Fatalf("truncated qty = %d", rec.Bids[0].QtyQ)
	}
	if schema.BidActive(rec.Bids[1]) {
		t.Fatal("empty cells should produce a sentinel level")
	}
}

func TestFileRequiresRecvColumn(t *testing.T) {
	dir := t.TempDir()
	in := writeGzCSV(t, dir, "bad.csv.gz", "ts_event_ms,bid_p1\n1,100\n")
	out := filepath.Join(dir, "bad.snap")

	if _, err := File(in, out, Options{}); !errors.Is(err, ErrMissingRecvColumn) {
		t.Fatalf("err = %v, want %v", err, ErrMissingRecvColumn)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("failed conversion left an output file")
	}
	if _, err := os.Stat(out + ".part"); !os.IsNotExist(err) {
		t.Fatal("failed conversion left a part file")
	}
}

func TestFileRejectsBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	in := writeGzCSV(t, dir, "bad.csv.gz", "ts_recv_ns\nnot-a-number\n")
	out := filepath.Join(dir, "bad.snap")

	if _, err := File(in, out, Options{}); !errors.Is(err, ErrBadRecvTimestamp) {
		t.Fatalf("err = %v, want %v", err, ErrBadRecvTimestamp)
	}
}

func TestNormalizeDropsOutOfOrderLevels(t *testing.T) {
	dir := t.TempDir()
	in := writeGzCSV(t, dir, "ticks.csv.gz", strings.Join([]string{
		"ts_recv_ns,bid_p1,bid_q1,bid_p2,bid_q2,bid_p3,bid_q3",
		"1000,100,1,101,1,99,1",
	}, "\n") + "\n")
	out := filepath.Join(dir, "ticks.snap")

	stats, err := File(in, out, Options{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if stats.OrderFixups != 1 {
		t.Fatalf("order fixups = %d, want 1", stats.OrderFixups)
	}

	r, err := snapshot.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	rec := r.Next()
	if !schema.BidActive(rec.Bids[0]) || schema.BidActive(rec.Bids[1]) || schema.BidActive(rec.Bids[2]) {
		t.Fatalf("bids = %+v", rec.Bids[:3])
	}
}

func TestNormalizeEnforcesTrailingSentinels(t *testing.T) {
	dir := t.TempDir()
	in := writeGzCSV(t, dir, "ticks.csv.gz", strings.Join([]string{
		"ts_recv_ns,ask_p1,ask_q1,ask_p2,ask_q2,ask_p3,ask_q3",
		"1000,100,1,,,101,1",
	}, "\n") + "\n")
	out := filepath.Join(dir, "ticks.snap")

	stats, err := File(in, out, Options{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if stats.TrailingFixups != 1 {
		t.Fatalf("trailing fixups = %d, want 1", stats.TrailingFixups)
	}

	r, err := snapshot.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	rec := r.Next()
	if !schema.AskActive(rec.Asks[0]) || schema.AskActive(rec.Asks[2]) {
		t.Fatalf("asks = %+v", rec.Asks[:3])
	}
}
