// internal/handlers/customer/customer.go
package customer

import (
	"fmt"
	"net/http"
	"strconv"

	"dedupe-service/internal/domain/customer"
	"dedupe-service/internal/pkg/response"
	service "dedupe-service/internal/service/customer"

	"github.com/gin-gonic/gin"
)

type CustomerHandler struct {
	customerService *service.CustomerService
}

func NewCustomerHandler(customerService *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
	}
}

// BulkCreate ingests structured records
func (h *CustomerHandler) BulkCreate(c *gin.Context) {
	var req customer.BulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	result, err := h.customerService.BulkCreate(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to create records", err)
		return
	}

	response.Success(c, http.StatusCreated, fmt.Sprintf("%d records created", result.RecordCount), result)
}

// GetCustomer retrieves a record by ID
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid record ID", err)
		return
	}

	result, err := h.customerService.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "record not found", err)
		return
	}

	response.Success(c, http.StatusOK, "record retrieved", result)
}

// ListCustomers lists records with filters
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	var filters customer.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	result, err := h.customerService.List(c.Request.Context(), &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list records", err)
		return
	}

	response.Success(c, http.StatusOK, "records retrieved", result)
}

// SearchCustomers searches by name, phone or customer id
func (h *CustomerHandler) SearchCustomers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.BadRequest(c, "search query is required", nil)
		return
	}

	result, err := h.customerService.Search(c.Request.Context(), query)
	if err != nil {
		response.FromError(c, "search failed", err)
		return
	}

	response.Success(c, http.StatusOK, "search results", result)
}

// GetStats returns record counts by status
func (h *CustomerHandler) GetStats(c *gin.Context) {
	result, err := h.customerService.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get statistics", err)
		return
	}

	response.Success(c, http.StatusOK, "statistics retrieved", result)
}

// ClearAll deletes every record (admin only)
func (h *CustomerHandler) ClearAll(c *gin.Context) {
	deleted, err := h.customerService.ClearAll(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to clear records", err)
		return
	}

	response.Success(c, http.StatusOK, "all records cleared", gin.H{"deleted": deleted})
}
