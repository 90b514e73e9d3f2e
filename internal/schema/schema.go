package schema

// PriceScale converts real prices to fixed-point: stored = real * PriceScale.
const PriceScale int64 = 100_000_000

// QtyScale converts real quantities to fixed-point: stored = real * QtyScale.
const QtyScale int64 = 100_000_000

// PpmDenom is the denominator for parts-per-million rates (fees, alpha).
const PpmDenom int64 = 1_000_000

// Side is the order side.
type Side uint16

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "Buy"
	case SideSell:
		return "Sell"
	default:
		return "Side(?)"
	}
}

// OrderType is the order pricing mode. Market is reserved and always rejected.
type OrderType uint16

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "Limit"
	case OrderTypeMarket:
		return "Market"
	default:
		return "OrderType(?)"
	}
}

// Tif is the time-in-force. IOC and FOK are accepted by the API but treated
// as GTC until a terminal transition.
type Tif uint16

const (
	TifGTC Tif = iota
	TifIOC
	TifFOK
)

// OrderState is the order lifecycle state.
type OrderState uint16

const (
	OrderStatePending OrderState = iota
	OrderStateActive
	OrderStatePartial
	OrderStateFilled
	OrderStateCancelled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStatePending:
		return "Pending"
	case OrderStateActive:
		return "Active"
	case OrderStatePartial:
		return "Partial"
	case OrderStateFilled:
		return "Filled"
	case OrderStateCancelled:
		return "Cancelled"
	case OrderStateRejected:
		return "Rejected"
	default:
		return "OrderState(?)"
	}
}

// Terminal reports whether the state is absorbing.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCancelled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// Resting reports whether the order sits in a bucket FIFO.
func (s OrderState) Resting() bool {
	return s == OrderStateActive || s == OrderStatePartial
}

// Visibility is the queue-tracking observability state of a resting order.
type Visibility uint16

const (
	VisibilityVisible Visibility = iota
	VisibilityBlind
	VisibilityFrozen
)

func (v Visibility) String() string {
	switch v {
	case VisibilityVisible:
		return "Visible"
	case VisibilityBlind:
		return "Blind"
	case VisibilityFrozen:
		return "Frozen"
	default:
		return "Visibility(?)"
	}
}

// StpPolicy selects the self-trade prevention behavior applied at activation.
type StpPolicy uint16

const (
	StpNone StpPolicy = iota
	StpRejectIncoming
	StpCancelResting
)

// RejectReason explains a rejected or refused operation.
type RejectReason uint16

const (
	RejectNone RejectReason = iota
	RejectInvalidParams
	RejectInsufficientFunds
	RejectInsufficientResources
	RejectSelfTradePrevention
	RejectUnknownOrderID
	RejectAlreadyTerminal
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "None"
	case RejectInvalidParams:
		return "InvalidParams"
	case RejectInsufficientFunds:
		return "InsufficientFunds"
	case RejectInsufficientResources:
		return "InsufficientResources"
	case RejectSelfTradePrevention:
		return "SelfTradePrevention"
	case RejectUnknownOrderID:
		return "UnknownOrderId"
	case RejectAlreadyTerminal:
		return "AlreadyTerminal"
	default:
		return "RejectReason(?)"
	}
}

// EventType is the lifecycle event category.
type EventType uint16

const (
	EventSubmit EventType = iota
	EventActivate
	EventCancel
	EventReject
)

func (t EventType) String() string {
	switch t {
	case EventSubmit:
		return "Submit"
	case EventActivate:
		return "Activate"
	case EventCancel:
		return "Cancel"
	case EventReject:
		return "Reject"
	default:
		return "EventType(?)"
	}
}

// Liquidity classifies a fill as maker or taker.
type Liquidity uint16

const (
	LiquidityMaker Liquidity = iota
	LiquidityTaker
)

func (l Liquidity) String() string {
	switch l {
	case LiquidityMaker:
		return "Maker"
	case LiquidityTaker:
		return "Taker"
	default:
		return "Liquidity(?)"
	}
}
