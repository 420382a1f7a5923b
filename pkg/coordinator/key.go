package coordinator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ComputeIdempotencyKey derives the deterministic digest of a logical action
// request from the user, intent, and canonicalized slot map (stable key
// ordering, stringified values).
//
// The key is used as-is for duplicate lookup. No random component may ever be
// mixed into it, or duplicate detection silently stops working; per-attempt
// uniqueness for logging lives in IdempotencyRecord.RefID instead.
func ComputeIdempotencyKey(userID, intent string, slots map[string]any) string {
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(userID)
	b.WriteByte('\n')
	b.WriteString(intent)
	for _, name := range names {
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%v", slots[name])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
