// internal/domain/dedupe/entity.go
package dedupe

import "dedupe-service/internal/domain/customer"

// MatchReason names the pass that produced a group.
type MatchReason string

const (
	ReasonPhoneExact MatchReason = "phone_exact"
	ReasonNameExact  MatchReason = "name_exact"
	ReasonNameFuzzy  MatchReason = "name_fuzzy"
)

// Confidence scores per pass. Fuzzy pairs score above larger fuzzy clusters.
const (
	ConfidencePhoneExact     = 95
	ConfidenceNameExact      = 90
	ConfidenceNameFuzzyPair  = 85
	ConfidenceNameFuzzyGroup = 80
)

// DuplicateGroup is computed per scan and never stored.
type DuplicateGroup struct {
	GroupID     string            `json:"group_id"`
	DisplayName string            `json:"display_name"`
	Records     []customer.Record `json:"records"`
	Confidence  int               `json:"confidence"`
	MatchReason MatchReason       `json:"match_reason"`
}

// RecordIDs returns the internal ids of the group members in order.
func (g DuplicateGroup) RecordIDs() []int64 {
	ids := make([]int64, 0, len(g.Records))
	for _, r := range g.Records {
		ids = append(ids, r.ID)
	}
	return ids
}

// ClaimMode decides which records an exact-key pass removes from later passes.
type ClaimMode string

const (
	// ClaimKeyed claims every record that produced a key, matched or not.
	ClaimKeyed ClaimMode = "keyed"
	// ClaimGrouped claims only records that landed in a group.
	ClaimGrouped ClaimMode = "grouped"
)

func ParseClaimMode(s string) ClaimMode {
	if ClaimMode(s) == ClaimGrouped {
		return ClaimGrouped
	}
	return ClaimKeyed
}
