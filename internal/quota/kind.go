// StudyForge | 2026
// kind.go

package quota

import (
	"errors"
	"fmt"
)

// ContentKind is the closed set of user-created artifacts subject to
// guest creation ceilings. Adding a kind requires a matching guest
// limit in the policy; the loader rejects policies missing one.
type ContentKind string

const (
	KindPlan      ContentKind = "plan"
	KindLesson    ContentKind = "lesson"
	KindFlashcard ContentKind = "flashcard"
)

// ErrUnknownContentKind is a programmer error: a caller used a kind
// outside the closed set. It always propagates; the enforcer never
// converts it into a default allow or deny.
var ErrUnknownContentKind = errors.New("unknown content kind")

// AllKinds returns the closed enumeration in stable order.
func AllKinds() []ContentKind {
	return []ContentKind{KindPlan, KindLesson, KindFlashcard}
}

func (k ContentKind) Valid() bool {
	switch k {
	case KindPlan, KindLesson, KindFlashcard:
		return true
	}
	return false
}

func (k ContentKind) String() string {
	return string(k)
}

// Plural returns the display noun for n items of this kind.
func (k ContentKind) Plural(n int64) string {
	if n == 1 {
		return string(k)
	}
	return string(k) + "s"
}

func ParseContentKind(s string) (ContentKind, error) {
	k := ContentKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownContentKind, s)
	}
	return k, nil
}

// Tier mirrors the account tier carried in access-token claims. The
// quota subsystem never trusts a tier supplied in a request body.
type Tier string

const (
	TierGuest Tier = "guest"
	TierFull  Tier = "full"
)

func (t Tier) Valid() bool {
	return t == TierGuest || t == TierFull
}

// TierFromClaim maps a token claim to a tier, failing closed: anything
// other than an exact "full" claim is treated as guest.
func TierFromClaim(s string) Tier {
	if Tier(s) == TierFull {
		return TierFull
	}
	return TierGuest
}
