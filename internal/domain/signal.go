package domain

// Signal is the directional decision derived from price history.
type Signal int

const (
	// SignalHold means do nothing this cycle.
	SignalHold Signal = iota
	// SignalBuy means open a long position.
	SignalBuy
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalHold:
		return "hold"
	default:
		return "unknown"
	}
}
