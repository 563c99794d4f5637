package domain

// SignalType is the trading direction of a signal.
type SignalType int

const (
	SignalBuy SignalType = iota + 1
	SignalSell
)

func (t SignalType) String() string {
	switch t {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return "none"
	}
}

// Direction devuelve +1 para long y -1 para short.
func (t SignalType) Direction() float64 {
	if t == SignalSell {
		return -1
	}
	return 1
}

// Opposite returns the reverse direction.
func (t SignalType) Opposite() SignalType {
	if t == SignalBuy {
		return SignalSell
	}
	return SignalBuy
}

// AbsorptionLabel is the name the detector gives a candidate.
//
// The label names what got absorbed, not the trade direction: a large buyer
// eaten by small sellers is "sell_absorption" and trades as a Buy.
type AbsorptionLabel string

const (
	LabelSellAbsorption AbsorptionLabel = "sell_absorption"
	LabelBuyAbsorption  AbsorptionLabel = "buy_absorption"
)

// LabelFor returns the label for a large trade by the given aggressor.
func LabelFor(aggressor Side) AbsorptionLabel {
	if aggressor == SideBuyer {
		return LabelSellAbsorption
	}
	return LabelBuyAbsorption
}

// SignalType maps the label to the direction traded downstream.
func (l AbsorptionLabel) SignalType() SignalType {
	if l == LabelSellAbsorption {
		return SignalBuy
	}
	return SignalSell
}

// Signal is a confirmed absorption event, consumed once by a position manager.
type Signal struct {
	Type           SignalType
	Label          AbsorptionLabel
	Timestamp      int64
	Price          float64
	TriggerQty     float64
	BucketVolume   float64 // buy+sell volume of the trade's price bucket
	ImbalanceRatio float64 // aggressor volume / opposing volume in the bucket, see SafeRatio
	Invalidated    bool

	// TradeIndex is the tape position of the trigger trade, -1 when the
	// signal did not come from a tape replay.
	TradeIndex int
}
