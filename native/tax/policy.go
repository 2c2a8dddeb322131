package tax

const (
	// BpsDenominator defines the scaling factor used for basis point math.
	BpsDenominator = 10_000
	// MaxTaxBps caps the effective rate at 99%.
	MaxTaxBps = 9_900
	// MaxExemptAddresses bounds the exempt set.
	MaxExemptAddresses = 50

	// DefaultBaseTaxBps is the genesis base transfer tax (2%).
	DefaultBaseTaxBps = 200
	// DefaultAlpha is the large-trade penalty coefficient (x100 fixed point).
	DefaultAlpha = 500
	// DefaultBeta is the time-decay exponent (x100 fixed point). The
	// behavioural contract is the discrete discount table; beta is carried
	// as documentation of intent and surfaced through policy events.
	DefaultBeta = 50
	// DefaultGammaBps is the maximum loyalty weight.
	DefaultGammaBps = 2_000
	// DefaultPanicThresholdBps triggers the sell-side circuit breaker.
	DefaultPanicThresholdBps = 50
	// DefaultPanicRateBps is the elevated rate applied under panic policy.
	DefaultPanicRateBps = 3_000
)

// Policy is the mutable tax configuration threaded into every settlement
// call. It is updated only through the node's versioned write path, so
// readers always observe a fully-applied policy.
type Policy struct {
	BaseBps           uint32
	Alpha             uint64
	Beta              uint64
	GammaBps          uint32
	PanicThresholdBps uint32
	PanicRateBps      uint32
	Enabled           bool
	Exempt            [][20]byte
	LastUpdated       int64
	Version           uint64
}

// DefaultPolicy returns the genesis tax configuration.
func DefaultPolicy(now int64) *Policy {
	return &Policy{
		BaseBps:           DefaultBaseTaxBps,
		Alpha:             DefaultAlpha,
		Beta:              DefaultBeta,
		GammaBps:          DefaultGammaBps,
		PanicThresholdBps: DefaultPanicThresholdBps,
		PanicRateBps:      DefaultPanicRateBps,
		Enabled:           true,
		Exempt:            [][20]byte{},
		LastUpdated:       now,
		Version:           1,
	}
}

// Clone returns a deep copy to avoid accidental aliasing of the exempt set
// between callers.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Exempt = make([][20]byte, len(p.Exempt))
	copy(clone.Exempt, p.Exempt)
	return &clone
}

// Validate checks the rate bounds the policy must hold at all times.
func (p *Policy) Validate() error {
	if p == nil {
		return ErrNilPolicy
	}
	if p.BaseBps > MaxTaxBps || p.PanicRateBps > MaxTaxBps {
		return ErrRateOutOfRange
	}
	if p.GammaBps > BpsDenominator || p.PanicThresholdBps > BpsDenominator {
		return ErrRateOutOfRange
	}
	if len(p.Exempt) > MaxExemptAddresses {
		return ErrExemptListFull
	}
	return nil
}

// IsExempt reports whether the address bypasses taxation entirely.
func (p *Policy) IsExempt(addr [20]byte) bool {
	if p == nil {
		return false
	}
	for _, exempt := range p.Exempt {
		if exempt == addr {
			return true
		}
	}
	return false
}

// AddExempt appends an address to the bounded exempt set.
func (p *Policy) AddExempt(addr [20]byte) error {
	if p == nil {
		return ErrNilPolicy
	}
	if p.IsExempt(addr) {
		return ErrAlreadyExempt
	}
	if len(p.Exempt) >= MaxExemptAddresses {
		return ErrExemptListFull
	}
	p.Exempt = append(p.Exempt, addr)
	return nil
}

// RemoveExempt deletes an address from the exempt set.
func (p *Policy) RemoveExempt(addr [20]byte) error {
	if p == nil {
		return ErrNilPolicy
	}
	for i, exempt := range p.Exempt {
		if exempt == addr {
			p.Exempt = append(p.Exempt[:i], p.Exempt[i+1:]...)
			return nil
		}
	}
	return ErrNotExempt
}
