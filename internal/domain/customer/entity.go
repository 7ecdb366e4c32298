// internal/domain/customer/entity.go
package customer

import (
	"fmt"
	"strings"
	"time"

	xerrors "dedupe-service/internal/pkg/errors"

	"github.com/lib/pq"
)

// Status is the merge lifecycle state of a record.
type Status string

const (
	StatusClean      Status = "clean"
	StatusMerged     Status = "merged"
	StatusMergedInto Status = "merged_into"
)

// ParseStatus accepts the wire form of a status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", xerrors.Invalid("unknown status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusClean, StatusMerged, StatusMergedInto:
		return true
	}
	return false
}

// CanTransitionTo reports whether a record in status s may move to next.
// A merged_into record is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusClean, StatusMerged:
		return next == StatusMerged || next == StatusMergedInto
	default:
		return false
	}
}

type Record struct {
	ID         int64  `json:"id" db:"id"`
	CustomerID string `json:"customer_id" db:"customer_id"`

	// Person details
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Phone     string `json:"phone" db:"phone"`
	Address   string `json:"address,omitempty" db:"address"`
	Zone      string `json:"zone,omitempty" db:"zone"`

	// Merge state
	IsMerged   bool           `json:"is_merged" db:"is_merged"`
	MergedFrom pq.StringArray `json:"merged_from" db:"merged_from"`
	Status     Status         `json:"status" db:"status"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName is the "first last" display form used for group names.
func (r *Record) FullName() string {
	return fmt.Sprintf("%s %s", r.FirstName, r.LastName)
}

// Absorb appends external ids to MergedFrom, skipping ids already present
// and the record's own id. It returns the ids that were actually added.
func (r *Record) Absorb(ids ...string) []string {
	seen := make(map[string]struct{}, len(r.MergedFrom)+len(ids))
	for _, id := range r.MergedFrom {
		seen[id] = struct{}{}
	}

	var added []string
	for _, id := range ids {
		if id == "" || id == r.CustomerID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		r.MergedFrom = append(r.MergedFrom, id)
		added = append(added, id)
	}
	return added
}

// MarkPrimary moves the record into the merged state.
func (r *Record) MarkPrimary() error {
	if !r.Status.CanTransitionTo(StatusMerged) {
		return fmt.Errorf("%w: record %d is %s and cannot become a primary", xerrors.ErrInvalidTransition, r.ID, r.Status)
	}
	r.Status = StatusMerged
	r.IsMerged = true
	return nil
}

// MarkMergedInto supersedes the record. MergedFrom is left as is.
func (r *Record) MarkMergedInto() error {
	if !r.Status.CanTransitionTo(StatusMergedInto) {
		return fmt.Errorf("%w: record %d is already %s", xerrors.ErrInvalidTransition, r.ID, r.Status)
	}
	r.Status = StatusMergedInto
	r.IsMerged = true
	return nil
}

// Clone returns a copy that shares no slices with r.
func (r Record) Clone() Record {
	out := r
	if r.MergedFrom != nil {
		out.MergedFrom = make(pq.StringArray, len(r.MergedFrom))
		copy(out.MergedFrom, r.MergedFrom)
	}
	return out
}

type Stats struct {
	TotalRecords   int64 `json:"total_records"`
	CleanRecords   int64 `json:"clean_records"`
	MergedRecords  int64 `json:"merged_records"`
	MergedInto     int64 `json:"merged_into_records"`
	DuplicatesSeen int64 `json:"duplicates_count"`
}
