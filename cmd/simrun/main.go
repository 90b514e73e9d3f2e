package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/invariant"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/schema"
	"main/internal/sim"
	"main/internal/snapshot"
	"main/internal/store"
)

const shutdownPollInterval = 4096

func main() {
	snapPath := flag.String("snap", "", "Snapshot file to replay")
	configPath := flag.String("config", "", "Run config JSON (optional)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN for run persistence (optional)")
	limit := flag.Int("limit", 0, "Stop after this many records (0=all)")
	check := flag.Bool("check", false, "Enable invariant checks")
	flag.Usage = usage
	flag.Parse()

	if *snapPath == "" {
		usage()
		os.Exit(2)
	}

	var loaded ops.Loaded
	if *configPath != "" {
		var err error
		loaded, err = ops.Load(*configPath)
		if err != nil {
			log.Fatalf("load config %s failed: %+v", *configPath, err)
		}
	}

	reader, err := snapshot.Open(*snapPath)
	if err != nil {
		log.Fatalf("open snapshot %s failed: %+v", *snapPath, err)
	}
	defer reader.Close()

	header := reader.Header()
	if loaded.Params.PriceScale == 0 {
		loaded.Params.PriceScale = header.PriceScale
	} else if loaded.Params.PriceScale != header.PriceScale {
		log.Fatalf("config price scale %d does not match snapshot scale %d",
			loaded.Params.PriceScale, header.PriceScale)
	}
	if loaded.Params.QtyScale == 0 {
		loaded.Params.QtyScale = header.QtyScale
	} else if loaded.Params.QtyScale != header.QtyScale {
		log.Fatalf("config qty scale %d does not match snapshot scale %d",
			loaded.Params.QtyScale, header.QtyScale)
	}

	engine, err := sim.New(loaded.Params)
	if err != nil {
		log.Fatalf("engine init failed: %+v", err)
	}

	startTs := int64(0)
	if reader.Len() > 0 {
		startTs = reader.At(0).TsRecvNs
	}
	engine.Reset(startTs, loaded.Opening)

	run := replay(engine, reader, loaded, *limit, *check)

	report(engine, loaded, run)

	if *dsn != "" {
		if err := persist(*dsn, *snapPath, engine, run); err != nil {
			logs.Errorf("persist run failed: %+v", err)
			os.Exit(1)
		}
	}
	if run.checkFailed {
		os.Exit(1)
	}
}

// runState carries everything the replay loop accumulates beyond the engine's
// own logs.
type runState struct {
	metrics *obs.Metrics
	markout *invariant.Markout
	rows    []invariant.MarkoutRow

	records     int
	startedAt   time.Time
	elapsed     time.Duration
	checkFailed bool
	interrupted bool
}

func replay(engine *sim.Simulator, reader *snapshot.Reader, loaded ops.Loaded, limit int, check bool) *runState {
	run := &runState{
		metrics: obs.NewMetrics(),
		markout: invariant.NewMarkout(loaded.Checks.MarkoutHorizons),
	}
	conservation := invariant.NewConservation(loaded.Opening)
	checker := invariant.NewChecker(loaded.Opening.CashQ, loaded.Checks.ToleranceQ, loaded.Params.PriceScale)

	scriptIdx := 0
	eventsSeen := 0
	fillsSeen := 0

	wall := time.Now()
	run.startedAt = wall
	for step := 0; ; step++ {
		if limit > 0 && step >= limit {
			break
		}
		if step%shutdownPollInterval == 0 {
			select {
			case <-sys.Shutdown():
				logs.Info("shutdown requested, stopping replay")
				run.interrupted = true
			default:
			}
			if run.interrupted {
				break
			}
		}

		rec := reader.Next()
		if rec == nil {
			break
		}

		for scriptIdx < len(loaded.Script) && loaded.Script[scriptIdx].Step <= step {
			apply(engine, loaded.Script[scriptIdx])
			scriptIdx++
		}

		stepStart := time.Now()
		engine.Step(rec)
		run.metrics.ObserveRecord(time.Since(stepStart))
		run.records++

		midQ, hasMid := int64(0), false
		if schema.HasTopOfBook(rec) {
			midQ = (rec.Bids[0].PriceQ + rec.Asks[0].PriceQ) / 2
			hasMid = true
		}

		for ; eventsSeen < engine.EventCount(); eventsSeen++ {
			e := engine.EventAt(eventsSeen)
			run.metrics.ObserveEvent(e.Type)
			checker.ObserveEvent(e)
			if e.Type == schema.EventReject {
				run.metrics.ObserveReject(e.Reason)
			}
		}
		for ; fillsSeen < engine.FillCount(); fillsSeen++ {
			f := engine.FillAt(fillsSeen)
			run.metrics.ObserveFill(f.Liquidity)
			checker.ObserveFill(f)
			conservation.ObserveFill(f)
			if hasMid {
				run.markout.OnFill(f, step, midQ)
			}
		}
		if hasMid {
			run.markout.Update(step, midQ)
		}

		if check && loaded.Checks.EveryN > 0 && step%loaded.Checks.EveryN == 0 {
			if _, err := checker.CheckResidual(engine.Ledger(), step, midQ, hasMid); err != nil {
				logs.Errorf("residual check failed: %+v", err)
				run.checkFailed = true
			}
		}
	}
	run.elapsed = time.Since(wall)

	if scriptIdx < len(loaded.Script) {
		logs.Warnf("%d scripted actions past end of data were not applied", len(loaded.Script)-scriptIdx)
	}

	if check {
		if err := conservation.Check(engine.Ledger(), 0, 0); err != nil {
			logs.Errorf("conservation check failed: %+v", err)
			run.checkFailed = true
		}
		if err := checker.CheckRejectTerminal(engine.Orders()); err != nil {
			logs.Errorf("reject-terminal check failed: %+v", err)
			run.checkFailed = true
		}
		if acc := checker.Acc(); acc.OverflowRisk {
			logs.Warnf("mark-to-market skipped at one or more checkpoints, position*mid near i64 range")
		}
	}

	run.rows = run.markout.Completed()
	return run
}

func apply(engine *sim.Simulator, a ops.Action) {
	switch a.Op {
	case ops.OpPlaceLimit:
		if id := engine.PlaceLimit(a.Limit); id == 0 {
			logs.Warnf("limit order at step %d refused", a.Step)
		}
	case ops.OpPlaceMarket:
		if id := engine.PlaceMarket(a.Market); id == 0 {
			logs.Warnf("market order at step %d refused", a.Step)
		}
	case ops.OpCancel:
		if !engine.Cancel(a.OrderID) {
			logs.Warnf("cancel of order %d at step %d refused", a.OrderID, a.Step)
		}
	}
}

func report(engine *sim.Simulator, loaded ops.Loaded, run *runState) {
	snap := run.metrics.Snapshot()
	ledger := engine.Ledger()

	rate := 0.0
	if run.elapsed > 0 {
		rate = float64(run.records) / run.elapsed.Seconds()
	}
	logs.Infof("replayed %d records in %s (%.0f rec/s), step p50=%s p99=%s",
		run.records, run.elapsed.Round(time.Millisecond), rate, snap.StepLatency.P50, snap.StepLatency.P99)
	logs.Infof("fills=%d events=%d cash=%d locked_cash=%d pos=%d locked_pos=%d",
		engine.FillCount(), engine.EventCount(),
		ledger.CashQ, ledger.LockedCashQ, ledger.PositionQtyQ, ledger.LockedPositionQtyQ)
	for reason, count := range snap.RejectCounts {
		logs.Infof("rejects %s: %d", reason, count)
	}

	reportMarkout(loaded.Checks.MarkoutHorizons, run)
}

func reportMarkout(horizons []int, run *runState) {
	if len(run.rows) == 0 {
		if run.markout.Pending() > 0 {
			logs.Infof("markout: %d fills with unresolved horizons", run.markout.Pending())
		}
		return
	}
	sums := make(map[int]int64)
	counts := make(map[int]int)
	for _, row := range run.rows {
		for _, m := range row.Markouts {
			sums[m.HorizonSteps] += m.DeltaQ
			counts[m.HorizonSteps]++
		}
	}
	for _, h := range horizons {
		if counts[h] == 0 {
			continue
		}
		logs.Infof("markout h=%d: n=%d mean=%.2f", h, counts[h], float64(sums[h])/float64(counts[h]))
	}
	if pending := run.markout.Pending(); pending > 0 {
		logs.Infof("markout: %d fills with unresolved horizons", pending)
	}
}

func persist(dsn, snapPath string, engine *sim.Simulator, run *runState) error {
	fingerprint, err := snapshot.Fingerprint(snapPath)
	if err != nil {
		return err
	}

	sink, err := store.Open(dsn)
	if err != nil {
		return err
	}
	defer sink.Close()

	ledger := engine.Ledger()
	row := store.Run{
		ID:          store.RunID(fingerprint, run.startedAt),
		SnapPath:    snapPath,
		Fingerprint: fingerprint,
		Records:     uint64(run.records),
		FinalCashQ:  ledger.CashQ,
		FinalPosQ:   ledger.PositionQtyQ,
	}
	if err := sink.SaveRun(row, engine.Fills(), engine.Events()); err != nil {
		return err
	}
	logs.Infof("persisted run %d (%d fills, %d events)", row.ID, engine.FillCount(), engine.EventCount())
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: simrun -snap <file.snap> [flags]\n")
	flag.PrintDefaults()
}
