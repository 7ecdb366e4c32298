// internal/service/dedupe/matcher.go
package dedupe

import (
	"strings"
	"unicode"

	"dedupe-service/internal/domain/customer"
	"dedupe-service/internal/domain/dedupe"
	"dedupe-service/internal/pkg/similarity"

	"github.com/oklog/ulid/v2"
)

// Fuzzy pass thresholds. A strong match on one name part tolerates a weaker
// match on the other.
const (
	fuzzyStrong = 0.85
	fuzzyWeak   = 0.75
)

// ClaimSet holds the ids of records already assigned by an earlier pass.
type ClaimSet map[int64]struct{}

func (c ClaimSet) Has(id int64) bool {
	_, ok := c[id]
	return ok
}

func (c ClaimSet) Add(id int64) {
	c[id] = struct{}{}
}

func (c ClaimSet) Clone() ClaimSet {
	out := make(ClaimSet, len(c))
	for id := range c {
		out[id] = struct{}{}
	}
	return out
}

// Matcher partitions records into duplicate groups in three passes:
// exact phone, exact name, fuzzy name. Each record joins at most one group.
// Results depend on input order: in the fuzzy pass earlier records claim
// their partners first.
type Matcher struct {
	mode  dedupe.ClaimMode
	newID func() string
}

type MatcherOption func(*Matcher)

// WithClaimMode selects which records the exact passes withhold from later passes.
func WithClaimMode(mode dedupe.ClaimMode) MatcherOption {
	return func(m *Matcher) {
		m.mode = mode
	}
}

// WithGroupIDs replaces the ULID group id generator.
func WithGroupIDs(fn func() string) MatcherOption {
	return func(m *Matcher) {
		m.newID = fn
	}
}

func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		mode: dedupe.ClaimKeyed,
		newID: func() string {
			return ulid.Make().String()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindDuplicates never fails; an empty input yields an empty, non-nil slice.
func (m *Matcher) FindDuplicates(records []customer.Record) []dedupe.DuplicateGroup {
	groups := make([]dedupe.DuplicateGroup, 0)
	claimed := make(ClaimSet)

	var found []dedupe.DuplicateGroup
	found, claimed = m.phoneExactPass(records, claimed)
	groups = append(groups, found...)

	found, claimed = m.nameExactPass(records, claimed)
	groups = append(groups, found...)

	found, _ = m.fuzzyNamePass(records, claimed)
	groups = append(groups, found...)

	return groups
}

func (m *Matcher) phoneExactPass(records []customer.Record, claimed ClaimSet) ([]dedupe.DuplicateGroup, ClaimSet) {
	return m.bucketPass(records, claimed,
		func(r *customer.Record) string { return NormalizePhone(r.Phone) },
		func(members []customer.Record, _ string) string { return members[0].FullName() },
		dedupe.ReasonPhoneExact, dedupe.ConfidencePhoneExact,
	)
}

func (m *Matcher) nameExactPass(records []customer.Record, claimed ClaimSet) ([]dedupe.DuplicateGroup, ClaimSet) {
	return m.bucketPass(records, claimed,
		func(r *customer.Record) string { return NameKey(r.FirstName, r.LastName) },
		func(_ []customer.Record, key string) string { return key },
		dedupe.ReasonNameExact, dedupe.ConfidenceNameExact,
	)
}

// bucketPass groups unclaimed records by an exact key. Buckets are emitted in
// order of their key's first appearance in records.
func (m *Matcher) bucketPass(
	records []customer.Record,
	claimed ClaimSet,
	key func(*customer.Record) string,
	name func([]customer.Record, string) string,
	reason dedupe.MatchReason,
	confidence int,
) ([]dedupe.DuplicateGroup, ClaimSet) {
	next := claimed.Clone()
	buckets := make(map[string][]customer.Record)
	var order []string
	seen := make(ClaimSet)

	for i := range records {
		r := &records[i]
		if claimed.Has(r.ID) || seen.Has(r.ID) {
			continue
		}
		k := key(r)
		if k == "" {
			continue
		}
		seen.Add(r.ID)
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], *r)
		if m.mode != dedupe.ClaimGrouped {
			next.Add(r.ID)
		}
	}

	var groups []dedupe.DuplicateGroup
	for _, k := range order {
		members := buckets[k]
		if len(members) < 2 {
			continue
		}
		if m.mode == dedupe.ClaimGrouped {
			for _, r := range members {
				next.Add(r.ID)
			}
		}
		groups = append(groups, dedupe.DuplicateGroup{
			GroupID:     m.newID(),
			DisplayName: name(members, k),
			Records:     members,
			Confidence:  confidence,
			MatchReason: reason,
		})
	}

	return groups, next
}

// fuzzyNamePass seeds a group with each unclaimed record in input order and
// pulls in every later unclaimed record whose names are similar enough.
// Records with no name at all carry no evidence and are skipped.
func (m *Matcher) fuzzyNamePass(records []customer.Record, claimed ClaimSet) ([]dedupe.DuplicateGroup, ClaimSet) {
	next := claimed.Clone()
	var groups []dedupe.DuplicateGroup

	for i := range records {
		seed := records[i]
		if next.Has(seed.ID) || NameKey(seed.FirstName, seed.LastName) == "" {
			continue
		}
		next.Add(seed.ID)
		members := []customer.Record{seed}

		for j := i + 1; j < len(records); j++ {
			cand := records[j]
			if next.Has(cand.ID) || NameKey(cand.FirstName, cand.LastName) == "" {
				continue
			}
			if namesMatch(seed, cand) {
				members = append(members, cand)
				next.Add(cand.ID)
			}
		}

		if len(members) < 2 {
			continue
		}

		confidence := dedupe.ConfidenceNameFuzzyPair
		if len(members) > 2 {
			confidence = dedupe.ConfidenceNameFuzzyGroup
		}
		groups = append(groups, dedupe.DuplicateGroup{
			GroupID:     m.newID(),
			DisplayName: members[0].FullName(),
			Records:     members,
			Confidence:  confidence,
			MatchReason: dedupe.ReasonNameFuzzy,
		})
	}

	return groups, next
}

func namesMatch(a, b customer.Record) bool {
	first := similarity.Dice(a.FirstName, b.FirstName)
	last := similarity.Dice(a.LastName, b.LastName)
	return (first > fuzzyStrong && last > fuzzyWeak) || (first > fuzzyWeak && last > fuzzyStrong)
}

// NormalizePhone strips whitespace and the characters "-", "(" and ")".
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, phone)
}

// NameKey is the exact-name bucket key: "first last", lower-cased and trimmed.
func NameKey(first, last string) string {
	return strings.TrimSpace(similarity.Normalize(first) + " " + similarity.Normalize(last))
}

// ExcludeSuperseded drops merged_into records so a rescan only sees live ones.
func ExcludeSuperseded(records []customer.Record) []customer.Record {
	out := make([]customer.Record, 0, len(records))
	for _, r := range records {
		if r.Status == customer.StatusMergedInto {
			continue
		}
		out = append(out, r)
	}
	return out
}
