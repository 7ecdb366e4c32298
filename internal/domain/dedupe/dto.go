// internal/domain/dedupe/dto.go
package dedupe

import "dedupe-service/internal/domain/customer"

type FindDuplicatesResponse struct {
	DuplicateGroups []DuplicateGroup `json:"duplicate_groups"`
	Total           int              `json:"total"`
}

// MergeRequest folds RecordIDs into PrimaryID. GroupID is caller bookkeeping.
type MergeRequest struct {
	GroupID   string  `json:"group_id"`
	PrimaryID int64   `json:"primary_id" binding:"required"`
	RecordIDs []int64 `json:"record_ids" binding:"required"`
}

type MergeResponse struct {
	PrimaryRecord *customer.Record `json:"primary_record"`
	AbsorbedIDs   []string         `json:"absorbed_ids"`
}

type BatchGroupRequest struct {
	GroupID   string  `json:"group_id" binding:"required"`
	PrimaryID int64   `json:"primary_id" binding:"required"`
	RecordIDs []int64 `json:"record_ids" binding:"required"`
}

type BatchMergeRequest struct {
	Groups []BatchGroupRequest `json:"groups" binding:"required,dive"`
}

type GroupResult struct {
	GroupID   string `json:"group_id"`
	Success   bool   `json:"success"`
	PrimaryID int64  `json:"primary_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

type BatchMergeResponse struct {
	TotalProcessed int           `json:"total_processed"`
	SuccessCount   int           `json:"success_count"`
	FailureCount   int           `json:"failure_count"`
	Results        []GroupResult `json:"results"`
}
