package utils

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SortAscending  = "asc"
	SortDescending = "desc"
)

// PaginationParams is the page window and ordering requested by a client.
// Sort is untrusted; repositories resolve it through SortField.
type PaginationParams struct {
	Page     int    `json:"page" form:"page"`
	PageSize int    `json:"page_size" form:"page_size"`
	Sort     string `json:"sort" form:"sort"`
	Order    string `json:"order" form:"order"`
}

type PaginationMeta struct {
	Page         int   `json:"page"`
	PageSize     int   `json:"page_size"`
	Total        int64 `json:"total"`
	TotalPages   int   `json:"total_pages"`
	HasNext      bool  `json:"has_next"`
	HasPrevious  bool  `json:"has_previous"`
	NextPage     *int  `json:"next_page,omitempty"`
	PreviousPage *int  `json:"previous_page,omitempty"`
}

func GetPaginationParams(c *gin.Context) *PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(DefaultPageSize)))

	return NewPaginationParams(page, pageSize, c.Query("sort"), c.DefaultQuery("order", SortDescending))
}

// NewPaginationParams clamps page and size into range and defaults the order
// to descending.
func NewPaginationParams(page, pageSize int, sort, order string) *PaginationParams {
	if page < 1 {
		page = 1
	}
	if pageSize < MinPageSize {
		pageSize = MinPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if order != SortAscending {
		order = SortDescending
	}
	return &PaginationParams{Page: page, PageSize: pageSize, Sort: sort, Order: order}
}

func (p *PaginationParams) GetSkip() int {
	return (p.Page - 1) * p.PageSize
}

func (p *PaginationParams) GetLimit() int {
	return p.PageSize
}

func (p *PaginationParams) Descending() bool {
	return p.Order != SortAscending
}

// SortField returns Sort when it is one of allowed, otherwise fallback.
func (p *PaginationParams) SortField(fallback string, allowed ...string) string {
	for _, field := range allowed {
		if p.Sort == field {
			return field
		}
	}
	return fallback
}

// FindOptions applies the page window and a sort on field, with _id as the
// tie breaker so pages are stable.
func (p *PaginationParams) FindOptions(field string) *options.FindOptions {
	direction := 1
	if p.Descending() {
		direction = -1
	}
	return options.Find().
		SetSkip(int64(p.GetSkip())).
		SetLimit(int64(p.GetLimit())).
		SetSort(bson.D{{Key: field, Value: direction}, {Key: "_id", Value: direction}})
}

func CreatePaginationMeta(params *PaginationParams, total int64) *PaginationMeta {
	totalPages := int(math.Ceil(float64(total) / float64(params.PageSize)))

	meta := &PaginationMeta{
		Page:        params.Page,
		PageSize:    params.PageSize,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     params.Page < totalPages,
		HasPrevious: params.Page > 1,
	}
	if meta.HasNext {
		next := params.Page + 1
		meta.NextPage = &next
	}
	if meta.HasPrevious {
		previous := params.Page - 1
		meta.PreviousPage = &previous
	}
	return meta
}
