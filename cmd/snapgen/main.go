package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/yanun0323/logs"

	"main/internal/gen"
	"main/internal/schema"
	"main/internal/snapshot"
)

func main() {
	count := flag.Int("count", 100_000, "Number of records to generate")
	seed := flag.Int64("seed", 1, "Random walk seed")
	mid := flag.Int64("mid", 30_000*schema.PriceScale, "Opening mid price (scaled)")
	tick := flag.Int64("tick", schema.PriceScale/100, "Price grid step (scaled)")
	levels := flag.Int("levels", schema.Depth, "Active levels per side")
	baseQty := flag.Int64("base-qty", 5*schema.QtyScale, "Mean displayed quantity per level (scaled)")
	gapPpm := flag.Int64("gap-ppm", 50_000, "Per-tick chance of a shortened ladder, in ppm")
	intervalNs := flag.Int64("interval-ns", 100_000_000, "Tick spacing in nanoseconds")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	output := flag.Arg(0)
	if *count <= 0 {
		log.Fatalf("count must be > 0, got %d", *count)
	}

	g, err := gen.NewGenerator(gen.Config{
		Seed:       *seed,
		IntervalNs: *intervalNs,
		MidQ:       *mid,
		TickQ:      *tick,
		Levels:     *levels,
		BaseQtyQ:   *baseQty,
		GapPpm:     *gapPpm,
	})
	if err != nil {
		log.Fatalf("generator init failed: %+v", err)
	}

	w, err := snapshot.NewWriter(output, snapshot.NewFileHeader(schema.PriceScale, schema.QtyScale))
	if err != nil {
		log.Fatalf("open writer failed: %+v", err)
	}

	var rec schema.Record
	for i := 0; i < *count; i++ {
		g.Next(&rec)
		if err := w.Append(&rec); err != nil {
			w.Abort()
			log.Fatalf("append record %d failed: %+v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		log.Fatalf("finalize %s failed: %+v", output, err)
	}
	logs.Infof("wrote %s: records=%d seed=%d", output, *count, *seed)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: snapgen [flags] <output.snap>\n")
	flag.PrintDefaults()
}
