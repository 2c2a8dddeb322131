package settlement

// ConsumeKind tags tax-free treasury payments with their product purpose.
// Unknown discriminants are rejected, never defaulted.
type ConsumeKind uint8

const (
	ConsumeMapAction ConsumeKind = iota
	ConsumeAncestorMarking
	ConsumeOther
	ConsumeAuctionCreate
	ConsumeAuctionFee
	ConsumePredictionBet
	ConsumePredictionFee
)

// ConsumeKindFromByte decodes a stored or wire discriminant.
func ConsumeKindFromByte(b byte) (ConsumeKind, error) {
	kind := ConsumeKind(b)
	if !kind.Valid() {
		return 0, ErrUnknownConsumeKind
	}
	return kind, nil
}

// Valid reports whether the kind is within the supported range.
func (k ConsumeKind) Valid() bool {
	switch k {
	case ConsumeMapAction, ConsumeAncestorMarking, ConsumeOther,
		ConsumeAuctionCreate, ConsumeAuctionFee, ConsumePredictionBet, ConsumePredictionFee:
		return true
	default:
		return false
	}
}

func (k ConsumeKind) String() string {
	switch k {
	case ConsumeMapAction:
		return "map_action"
	case ConsumeAncestorMarking:
		return "ancestor_marking"
	case ConsumeOther:
		return "other"
	case ConsumeAuctionCreate:
		return "auction_create"
	case ConsumeAuctionFee:
		return "auction_fee"
	case ConsumePredictionBet:
		return "prediction_bet"
	case ConsumePredictionFee:
		return "prediction_fee"
	default:
		return "unknown"
	}
}
