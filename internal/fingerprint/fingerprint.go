// Package fingerprint derives stable, collision-resistant cache keys from
// (table, op, where, options) and from row IDs (spec §4.A).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/erbhushanpawar/sqldb-go/internal/types"
)

// Deriver derives cache keys; its Prefix is prepended to every key this
// package and its callers produce. Prefix is configured once per Client and threaded through explicitly
// rather than held as package state, so multiple Clients in one process
// never collide (spec §3 "Cache fingerprint").
type Deriver struct {
	Prefix string // key-space prefix, e.g. "myapp" or "prod"
}

// New returns a Deriver for the given key-space prefix.
func New(prefix string) Deriver {
	return Deriver{Prefix: prefix}
}

// For derives the fingerprint for a query: "<prefix>:cache:<table>:<op>:<hash>".
//
// where and options are serialized deterministically: map keys are sorted
// lexicographically, slices that represent unordered sets are sorted, and
// the exclusion fields (CorrelationID, SkipCache, WithRelations) are never
// part of the hashed payload — spec §4.A invariant 1.
func (d Deriver) For(table string, op types.OpKind, where types.WhereExpr, opts types.QueryOptions) string {
	payload := canonicalPayload(where, opts)
	return fmt.Sprintf("%s:cache:%s:%s:%s", d.Prefix, table, op, digest(payload))
}

// ForID derives the short by-id form: "<prefix>:cache:<table>:id:<id>".
func (d Deriver) ForID(table string, id string) string {
	return fmt.Sprintf("%s:cache:%s:id:%s", d.Prefix, table, id)
}

// canonicalPayload renders where+opts into a deterministic string. It is not
// meant to be parsed back; it only needs to be stable and collision-resistant
// across semantically-equal inputs.
func canonicalPayload(where types.WhereExpr, opts types.QueryOptions) string {
	var b strings.Builder
	if where != nil {
		sql, args := where.Normalize().Lower()
		b.WriteString("w:")
		b.WriteString(sql)
		b.WriteString("|a:")
		for _, a := range args {
			fmt.Fprintf(&b, "%v,", a)
		}
	}
	b.WriteString("|limit:")
	fmt.Fprintf(&b, "%d", opts.Limit)
	b.WriteString("|offset:")
	fmt.Fprintf(&b, "%d", opts.Offset)

	b.WriteString("|order:")
	b.WriteString(strings.Join(opts.OrderBy, ","))

	sel := append([]string(nil), opts.Select...)
	sort.Strings(sel)
	b.WriteString("|select:")
	b.WriteString(strings.Join(sel, ","))

	// CorrelationID, SkipCache, WithRelations intentionally excluded.
	return b.String()
}

func digest(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
