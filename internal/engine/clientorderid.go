package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// newClientOrderID builds a ClientOrderId shaped
// <account>_limit<tier>_<8-hex-random> (spec §3). The random suffix comes
// from a UUID rather than hand-rolled crypto/rand hex encoding, matching
// the original's `uuid.uuid4().hex[:8]` in shape while reusing a
// dependency already pulled in for this engine.
func newClientOrderID(account string, tier int) string {
	suffix := uuid.New().String()
	suffix = removeDashes(suffix)[:8]
	return fmt.Sprintf("%s_limit%d_%s", account, tier, suffix)
}

// newCloseOrderID builds a synthetic ClientOrderId for the reduce-only
// market order issued on user-cancel (spec §4.7).
func newCloseOrderID(account string) string {
	suffix := uuid.New().String()
	suffix = removeDashes(suffix)[:8]
	return fmt.Sprintf("%s_close_%s", account, suffix)
}

func removeDashes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
