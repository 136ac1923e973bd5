package core

// Signal is the outcome of a strategy evaluation
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// String implements fmt.Stringer
func (s Signal) String() string { return string(s) }

// Valid reports whether the signal is one of the known values
func (s Signal) Valid() bool {
	switch s {
	case SignalBuy, SignalSell, SignalHold:
		return true
	}
	return false
}
