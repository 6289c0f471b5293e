package utils

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pocketbase/pocketbase/core"
)

// --- HTTP Response Helpers ---

// ErrorResponse returns a JSON error response with the given status code and message
func ErrorResponse(re *core.RequestEvent, status int, message string) error {
	return re.JSON(status, map[string]string{"error": message})
}

// NotFoundResponse returns a 404 JSON error response
func NotFoundResponse(re *core.RequestEvent, message string) error {
	return ErrorResponse(re, http.StatusNotFound, message)
}

// BadRequestResponse returns a 400 JSON error response
func BadRequestResponse(re *core.RequestEvent, message string) error {
	return ErrorResponse(re, http.StatusBadRequest, message)
}

// InternalErrorResponse returns a 500 JSON error response
func InternalErrorResponse(re *core.RequestEvent, message string) error {
	return ErrorResponse(re, http.StatusInternalServerError, message)
}

// ForbiddenResponse returns a 403 JSON error response
func ForbiddenResponse(re *core.RequestEvent, message string) error {
	return ErrorResponse(re, http.StatusForbidden, message)
}

// ConflictResponse returns a 409 JSON error response
func ConflictResponse(re *core.RequestEvent, message string) error {
	return ErrorResponse(re, http.StatusConflict, message)
}

// SuccessResponse returns a 200 JSON success response with a message
func SuccessResponse(re *core.RequestEvent, message string) error {
	return re.JSON(http.StatusOK, map[string]string{"message": message})
}

// DataResponse returns a 200 JSON response with arbitrary data
func DataResponse(re *core.RequestEvent, data any) error {
	return re.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 JSON response with arbitrary data
func CreatedResponse(re *core.RequestEvent, data any) error {
	return re.JSON(http.StatusCreated, data)
}

// DecodeBody decodes a JSON request body into a generic map
func DecodeBody(re *core.RequestEvent) (map[string]any, error) {
	var input map[string]any
	if err := json.NewDecoder(re.Request.Body).Decode(&input); err != nil {
		return nil, err
	}
	return input, nil
}

// --- Pagination ---

// Page holds list paging parameters
type Page struct {
	Page    int
	PerPage int
}

// Offset returns the record offset of the page
func (p Page) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TotalPages returns the number of pages needed for total items
func (p Page) TotalPages(total int) int {
	return (total + p.PerPage - 1) / p.PerPage
}

// ParsePage reads page and perPage query params with defaults and bounds
func ParsePage(re *core.RequestEvent) Page {
	q := re.Request.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	if perPage < 1 || perPage > MaxPerPage {
		perPage = DefaultPerPage
	}
	return Page{Page: page, PerPage: perPage}
}

// ListResponse returns a paginated list response
func ListResponse(re *core.RequestEvent, items any, page Page, total int) error {
	return DataResponse(re, map[string]any{
		"items":      items,
		"page":       page.Page,
		"perPage":    page.PerPage,
		"totalItems": total,
		"totalPages": page.TotalPages(total),
	})
}

// --- Filter Helpers ---

// AndFilter joins non-empty filter expressions with &&
func AndFilter(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, "("+p+")")
		}
	}
	return strings.Join(out, " && ")
}

// SortField validates a sort expression against allowed field names.
// Returns fallback for anything else.
func SortField(sort string, allowed []string, fallback string) string {
	name := strings.TrimPrefix(sort, "-")
	for _, a := range allowed {
		if a == name {
			return sort
		}
	}
	return fallback
}

// NormalizeEmail normalizes an email address (lowercase, trimmed)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

