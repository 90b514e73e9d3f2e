package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/yanun0323/logs"

	"main/internal/convert"
	"main/internal/schema"
)

func main() {
	priceScale := flag.Int64("price-scale", schema.PriceScale, "Fixed-point price scale")
	qtyScale := flag.Int64("qty-scale", schema.QtyScale, "Fixed-point quantity scale")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}
	input := flag.Arg(0)
	output := flag.Arg(1)

	stats, err := convert.File(input, output, convert.Options{
		PriceScale: *priceScale,
		QtyScale:   *qtyScale,
	})
	if err != nil {
		logs.Errorf("convert %s failed: %+v", input, err)
		os.Exit(1)
	}
	logs.Infof("wrote %s: rows=%d records=%d sentinel_cells=%d order_fixups=%d trailing_fixups=%d",
		output, stats.Rows, stats.Records, stats.SentinelCells, stats.OrderFixups, stats.TrailingFixups)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: snapconv [flags] <input.csv.gz> <output.snap>\n")
	flag.PrintDefaults()
}
