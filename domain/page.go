package domain

import (
	"crudflow/validation"
)

// MaxPageSize 单页最大条数
const MaxPageSize = 1000

// Sort 排序字段
type Sort struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// PageRequest 分页请求，Page 从 1 开始
type PageRequest struct {
	Page int    `json:"page"`
	Size int    `json:"size"`
	Sort []Sort `json:"sort,omitempty"`
}

// NewPageRequest 构造分页请求
func NewPageRequest(page, size int, sort ...Sort) PageRequest {
	return PageRequest{Page: page, Size: size, Sort: sort}
}

// Validate 校验页码与大小，违反时返回 INVALID_INPUT
func (p PageRequest) Validate() error {
	return validation.ValidatePageParams(p.Page, p.Size, MaxPageSize)
}

// Offset 返回偏移量
func (p PageRequest) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Size
}

// Page 分页结果
type Page[T any] struct {
	Content    []T   `json:"content"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalPages int   `json:"total_pages"`
}

// NewPage 根据请求与总数构造分页结果
func NewPage[T any](content []T, total int64, req PageRequest) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:    content,
		Total:      total,
		Page:       req.Page,
		Size:       req.Size,
		TotalPages: totalPages,
	}
}

// HasNext 是否存在下一页
func (p Page[T]) HasNext() bool { return p.Page < p.TotalPages }
