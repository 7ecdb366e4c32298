// internal/domain/customer/dto.go
package customer

type NewRecordRequest struct {
	FirstName string `json:"first_name" binding:"max=255"`
	LastName  string `json:"last_name" binding:"max=255"`
	Phone     string `json:"phone" binding:"max=40"`
	Address   string `json:"address" binding:"max=500"`
	Zone      string `json:"zone" binding:"max=120"`
}

type BulkCreateRequest struct {
	Records []NewRecordRequest `json:"records" binding:"required,min=1,dive"`
}

type BulkCreateResponse struct {
	RecordCount int      `json:"record_count"`
	Records     []Record `json:"records"`
}

type ListFilters struct {
	Status        string `form:"status" binding:"omitempty,oneof=clean merged merged_into"`
	Search        string `form:"search"` // Search by name, phone, customer id
	ExcludeMerged bool   `form:"exclude_merged"`
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
}

type ListResponse struct {
	Records    []Record `json:"records"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}
