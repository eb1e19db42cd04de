// StudyForge | 2026
// policy.go

package quota

import (
	"encoding/json"
	"fmt"

	"github.com/studyforge/backend/internal/config"
)

// Bound is a creation ceiling: either a finite non-negative count or
// the explicit Unbounded sentinel. Full-tier maxima are Unbounded by
// construction, never a large finite stand-in, so `max - current` can
// never overflow or serialize as a bogus number.
type Bound struct {
	n         int64
	unbounded bool
}

func BoundOf(n int64) Bound {
	return Bound{n: n}
}

func Unbounded() Bound {
	return Bound{unbounded: true}
}

func (b Bound) IsUnbounded() bool {
	return b.unbounded
}

// Value returns the finite ceiling. Only meaningful when !IsUnbounded.
func (b Bound) Value() int64 {
	return b.n
}

// Remaining floors at zero for finite bounds and stays Unbounded
// otherwise.
func (b Bound) Remaining(current int64) Bound {
	if b.unbounded {
		return b
	}
	left := b.n - current
	if left < 0 {
		left = 0
	}
	return BoundOf(left)
}

// Reached reports whether current has hit the ceiling. An unbounded
// ceiling is never reached.
func (b Bound) Reached(current int64) bool {
	return !b.unbounded && current >= b.n
}

func (b Bound) String() string {
	if b.unbounded {
		return "unlimited"
	}
	return fmt.Sprintf("%d", b.n)
}

func (b Bound) MarshalJSON() ([]byte, error) {
	if b.unbounded {
		return json.Marshal("unlimited")
	}
	return json.Marshal(b.n)
}

func (b *Bound) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unlimited" {
			return fmt.Errorf("invalid bound %q", s)
		}
		*b = Unbounded()
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid bound: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("invalid bound: negative limit %d", n)
	}
	*b = BoundOf(n)
	return nil
}

// Policy is the immutable (tier, kind) → Bound mapping. It is built
// once from config at startup and never mutated by the enforcer, so
// limit changes ship as config changes without migrating stored
// counts.
type Policy struct {
	maxima        map[Tier]map[ContentKind]Bound
	warnThreshold float64
}

// NewPolicy validates and freezes the quota configuration. Every kind
// must have a guest ceiling, and the full tier must map every kind to
// Unbounded; a misconfiguration surfaces here, once, instead of
// leaking into per-request decisions.
func NewPolicy(cfg config.QuotaConfig) (*Policy, error) {
	guest := map[ContentKind]Bound{
		KindPlan:      BoundOf(cfg.GuestLimits.Plans),
		KindLesson:    BoundOf(cfg.GuestLimits.Lessons),
		KindFlashcard: BoundOf(cfg.GuestLimits.Flashcards),
	}

	full := make(map[ContentKind]Bound, len(guest))
	for _, kind := range AllKinds() {
		full[kind] = Unbounded()
	}

	p := &Policy{
		maxima: map[Tier]map[ContentKind]Bound{
			TierGuest: guest,
			TierFull:  full,
		},
		warnThreshold: cfg.WarnThreshold,
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("quota policy: %w", err)
	}

	return p, nil
}

func (p *Policy) validate() error {
	if p.warnThreshold <= 0 || p.warnThreshold > 1 {
		return fmt.Errorf("warn threshold %v outside (0, 1]", p.warnThreshold)
	}

	for _, kind := range AllKinds() {
		bound, ok := p.maxima[TierGuest][kind]
		if !ok {
			return fmt.Errorf("no guest limit configured for kind %q", kind)
		}
		if bound.IsUnbounded() {
			return fmt.Errorf("guest limit for kind %q must be finite", kind)
		}
		if bound.Value() < 0 {
			return fmt.Errorf("guest limit for kind %q is negative", kind)
		}

		fullBound, ok := p.maxima[TierFull][kind]
		if !ok || !fullBound.IsUnbounded() {
			return fmt.Errorf("full tier must be unbounded for kind %q", kind)
		}
	}

	return nil
}

// MaxFor is a pure lookup; no I/O, no mutation.
func (p *Policy) MaxFor(tier Tier, kind ContentKind) (Bound, error) {
	if !kind.Valid() {
		return Bound{}, fmt.Errorf("%w: %q", ErrUnknownContentKind, kind)
	}
	if !tier.Valid() {
		return Bound{}, fmt.Errorf("unknown tier %q", tier)
	}
	return p.maxima[tier][kind], nil
}

func (p *Policy) WarnThreshold() float64 {
	return p.warnThreshold
}
