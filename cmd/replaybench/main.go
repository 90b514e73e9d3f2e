package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/obs"
	"main/internal/sim"
	"main/internal/snapshot"
)

func main() {
	root := flag.String("root", os.Getenv("DATA_PROCESSED_ROOT"), "Directory to scan for .snap files")
	repeat := flag.Int("repeat", 1, "Replay passes per file")
	profile := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	flag.Usage = usage
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		if *root == "" {
			usage()
			os.Exit(2)
		}
		var err error
		paths, err = discover(*root)
		if err != nil {
			log.Fatalf("scan %s failed: %+v", *root, err)
		}
	}
	if len(paths) == 0 {
		log.Fatalf("no .snap files found")
	}

	if *profile != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "replaybench",
			ServerAddress:   *profile,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	var totalRecords uint64
	var totalElapsed time.Duration
	for _, path := range paths {
		select {
		case <-sys.Shutdown():
			logs.Info("shutdown requested, stopping bench")
			return
		default:
		}
		records, elapsed, err := bench(path, *repeat)
		if err != nil {
			log.Fatalf("bench %s failed: %+v", path, err)
		}
		totalRecords += records
		totalElapsed += elapsed
	}

	if len(paths) > 1 && totalElapsed > 0 {
		logs.Infof("total: %d records in %s (%.0f rec/s)",
			totalRecords, totalElapsed.Round(time.Millisecond),
			float64(totalRecords)/totalElapsed.Seconds())
	}
}

func discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".snap") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func bench(path string, repeat int) (uint64, time.Duration, error) {
	reader, err := snapshot.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer reader.Close()

	header := reader.Header()
	engine, err := sim.New(sim.Params{
		PriceScale: header.PriceScale,
		QtyScale:   header.QtyScale,
	})
	if err != nil {
		return 0, 0, err
	}

	metrics := obs.NewMetrics()
	wall := time.Now()
	for pass := 0; pass < repeat; pass++ {
		reader.Reset()
		startTs := int64(0)
		if reader.Len() > 0 {
			startTs = reader.At(0).TsRecvNs
		}
		engine.Reset(startTs, sim.Ledger{})
		for {
			rec := reader.Next()
			if rec == nil {
				break
			}
			stepStart := time.Now()
			engine.Step(rec)
			metrics.ObserveRecord(time.Since(stepStart))
		}
	}
	elapsed := time.Since(wall)

	snap := metrics.Snapshot()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(snap.Records) / elapsed.Seconds()
	}
	logs.Infof("%s: %d records x%d in %s (%.0f rec/s), step min=%s p50=%s p99=%s max=%s",
		filepath.Base(path), reader.Len(), repeat, elapsed.Round(time.Millisecond), rate,
		snap.StepLatency.Min, snap.StepLatency.P50, snap.StepLatency.P99, snap.StepLatency.Max)
	return snap.Records, elapsed, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: replaybench [flags] [file.snap ...]\n")
	flag.PrintDefaults()
}
