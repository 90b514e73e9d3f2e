// Package ops loads and resolves run configuration for the replay binaries.
package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"main/internal/schema"
	"main/internal/sim"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Simulator SimulatorConfig `json:"simulator"`
	Ledger    LedgerConfig    `json:"ledger"`
	Agent     []ActionConfig  `json:"agent"`
	Checks    ChecksConfig    `json:"checks"`
}

// SimulatorConfig carries the engine parameters.
type SimulatorConfig struct {
	OutboundLatencyNs    int64  `json:"outboundLatencyNs"`
	ObservationLatencyNs int64  `json:"observationLatencyNs"`
	MaxOrders            int    `json:"maxOrders"`
	MaxEvents            int    `json:"maxEvents"`
	AlphaPpm             int64  `json:"alphaPpm"`
	PriceScale           int64  `json:"priceScale"`
	QtyScale             int64  `json:"qtyScale"`
	Stp                  string `json:"stp"`
	MakerFeePpm          int64  `json:"makerFeePpm"`
	TakerFeePpm          int64  `json:"takerFeePpm"`
	MaxAbsPositionQtyQ   int64  `json:"maxAbsPositionQtyQ"`
	SpotNoShort          bool   `json:"spotNoShort"`
}

// LedgerConfig is the opening balance set.
type LedgerConfig struct {
	CashQ        int64 `json:"cashQ"`
	PositionQtyQ int64 `json:"positionQtyQ"`
}

// ActionConfig is one scripted agent action, applied before the given step.
type ActionConfig struct {
	Step          int    `json:"step"`
	Op            string `json:"op"`
	Side          string `json:"side"`
	ClientOrderID uint64 `json:"clientOrderId"`
	PriceQ        int64  `json:"priceQ"`
	QtyQ          int64  `json:"qtyQ"`
	Tif           string `json:"tif"`
	OrderID       uint64 `json:"orderId"`
}

// ChecksConfig controls the invariant harness.
type ChecksConfig struct {
	EveryN          int   `json:"everyN"`
	ToleranceQ      int64 `json:"toleranceQ"`
	MarkoutHorizons []int `json:"markoutHorizons"`
}

// Op is a resolved scripted operation.
type Op uint16

const (
	OpPlaceLimit Op = iota
	OpPlaceMarket
	OpCancel
)

// Action is one resolved agent action.
type Action struct {
	Step    int
	Op      Op
	Limit   sim.LimitRequest
	Market  sim.MarketRequest
	OrderID uint64
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Params  sim.Params
	Opening sim.Ledger
	Script  []Action
	Checks  ChecksConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates a FileConfig and builds the runtime view.
func Resolve(cfg FileConfig) (Loaded, error) {
	stp, err := parseStp(cfg.Simulator.Stp)
	if err != nil {
		return Loaded{}, err
	}
	params := sim.Params{
		OutboundLatencyNs:    cfg.Simulator.OutboundLatencyNs,
		ObservationLatencyNs: cfg.Simulator.ObservationLatencyNs,
		MaxOrders:            cfg.Simulator.MaxOrders,
		MaxEvents:            cfg.Simulator.MaxEvents,
		AlphaPpm:             cfg.Simulator.AlphaPpm,
		PriceScale:           cfg.Simulator.PriceScale,
		QtyScale:             cfg.Simulator.QtyScale,
		Stp:                  stp,
		Fees: sim.FeeSchedule{
			MakerPpm: cfg.Simulator.MakerFeePpm,
			TakerPpm: cfg.Simulator.TakerFeePpm,
		},
		Risk: sim.RiskLimits{
			MaxAbsPositionQtyQ: cfg.Simulator.MaxAbsPositionQtyQ,
			SpotNoShort:        cfg.Simulator.SpotNoShort,
		},
	}

	script := make([]Action, 0, len(cfg.Agent))
	for i, a := range cfg.Agent {
		action, err := resolveAction(a)
		if err != nil {
			return Loaded{}, fmt.Errorf("agent action %d: %w", i, err)
		}
		script = append(script, action)
	}
	for i := 1; i < len(script); i++ {
		if script[i].Step < script[i-1].Step {
			return Loaded{}, fmt.Errorf("agent actions must be ordered by step, action %d at step %d after step %d",
				i, script[i].Step, script[i-1].Step)
		}
	}

	checks := cfg.Checks
	if checks.EveryN < 0 {
		return Loaded{}, fmt.Errorf("checks everyN must be >= 0, got %d", checks.EveryN)
	}
	if checks.ToleranceQ < 0 {
		return Loaded{}, fmt.Errorf("checks toleranceQ must be >= 0, got %d", checks.ToleranceQ)
	}

	return Loaded{
		Params: params,
		Opening: sim.Ledger{
			CashQ:        cfg.Ledger.CashQ,
			PositionQtyQ: cfg.Ledger.PositionQtyQ,
		},
		Script: script,
		Checks: checks,
	}, nil
}

func resolveAction(a ActionConfig) (Action, error) {
	if a.Step < 0 {
		return Action{}, fmt.Errorf("step must be >= 0, got %d", a.Step)
	}
	switch a.Op {
	case "limit":
		side, err := parseSide(a.Side)
		if err != nil {
			return Action{}, err
		}
		tif, err := parseTif(a.Tif)
		if err != nil {
			return Action{}, err
		}
		return Action{
			Step: a.Step,
			Op:   OpPlaceLimit,
			Limit: sim.LimitRequest{
				ClientOrderID: a.ClientOrderID,
				Side:          side,
				PriceQ:        a.PriceQ,
				QtyQ:          a.QtyQ,
				Tif:           tif,
			},
		}, nil
	case "market":
		side, err := parseSide(a.Side)
		if err != nil {
			return Action{}, err
		}
		return Action{
			Step: a.Step,
			Op:   OpPlaceMarket,
			Market: sim.MarketRequest{
				ClientOrderID: a.ClientOrderID,
				Side:          side,
				QtyQ:          a.QtyQ,
			},
		}, nil
	case "cancel":
		if a.OrderID == 0 {
			return Action{}, fmt.Errorf("cancel requires orderId")
		}
		return Action{Step: a.Step, Op: OpCancel, OrderID: a.OrderID}, nil
	default:
		return Action{}, fmt.Errorf("unknown op: %q", a.Op)
	}
}

func parseSide(s string) (schema.Side, error) {
	switch s {
	case "buy":
		return schema.SideBuy, nil
	case "sell":
		return schema.SideSell, nil
	default:
		return 0, fmt.Errorf("unknown side: %q", s)
	}
}

func parseTif(s string) (schema.Tif, error) {
	switch s {
	case "", "gtc":
		return schema.TifGTC, nil
	case "ioc":
		return schema.TifIOC, nil
	case "fok":
		return schema.TifFOK, nil
	default:
		return 0, fmt.Errorf("unknown tif: %q", s)
	}
}

func parseStp(s string) (schema.StpPolicy, error) {
	switch s {
	case "", "none":
		return schema.StpNone, nil
	case "reject-incoming":
		return schema.StpRejectIncoming, nil
	case "cancel-resting":
		return schema.StpCancelResting, nil
	default:
		return 0, fmt.Errorf("unknown stp policy: %q", s)
	}
}
