// Package rest 将 crud.IService 绑定为 gin 路由。
package rest

import (
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"crudflow/auth"
	"crudflow/criteria"
	"crudflow/crud"
	"crudflow/domain"
	"crudflow/errors"
)

// 查询串中的保留参数，不参与过滤
const (
	paramPage = "page"
	paramSize = "size"
	paramSort = "sort"
	paramAll  = "all"
)

const (
	mimeMergePatch = "application/merge-patch+json"
	mimeJSONPatch  = "application/json-patch+json"
	mimeJSON       = "application/json"
)

// DefaultPageSize 只给出 page 时的页大小
const DefaultPageSize = 20

// Options 资源路由配置
type Options[ID comparable] struct {
	// ParseID 解析路径中的 :id
	ParseID func(raw string) (ID, error)
	// Filters 允许过滤/排序的字段，为空时不限制（仓储仍会拒绝未映射字段）
	Filters []string
	// MaxBodyBytes 请求体上限，默认 1MB
	MaxBodyBytes int64
}

// Int64ID 十进制 int64 ID 解析器
func Int64ID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewBadRequest("无效的ID格式: %q", raw)
	}
	return id, nil
}

// StringID 原样使用路径参数
func StringID(raw string) (string, error) {
	if raw == "" {
		return "", errors.NewBadRequest("ID 不能为空")
	}
	return raw, nil
}

type resource[ID comparable, DTO any] struct {
	svc     crud.IService[ID, DTO]
	parseID func(string) (ID, error)
	allowed []string
	maxBody int64
}

// Register 在 group 上注册实体的 CRUD 路由：
//
//	GET    /count       计数，查询串为过滤条件
//	GET    /            列表；带 page/size 时分页
//	GET    /:id
//	POST   /            新建
//	POST   /batch       批量新建
//	PUT    /:id         整体更新
//	PATCH  /:id         merge patch 或 json patch
//	DELETE /:id
//	DELETE /            按条件删除；无条件时需 ?all=true
func Register[ID comparable, DTO any](group gin.IRouter, svc crud.IService[ID, DTO], opts Options[ID]) {
	if opts.ParseID == nil {
		panic("rest: Options.ParseID is required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	r := &resource[ID, DTO]{svc: svc, parseID: opts.ParseID, allowed: opts.Filters, maxBody: opts.MaxBodyBytes}

	group.GET("/count", r.count)
	group.GET("", r.list)
	group.GET("/:id", r.get)
	group.POST("", r.save)
	group.POST("/batch", r.saveMany)
	group.PUT("/:id", r.update)
	group.PATCH("/:id", r.edit)
	group.DELETE("/:id", r.delete)
	group.DELETE("", r.deleteMany)
}

func user(c *gin.Context) *domain.User {
	return auth.UserFrom(c.Request.Context())
}

func (r *resource[ID, DTO]) id(c *gin.Context) (ID, bool) {
	id, err := r.parseID(c.Param("id"))
	if err != nil {
		if !errors.HasCode(err) {
			err = errors.WrapError(err, errors.ErrCodeInvalidInput, "无效的ID格式")
		}
		respondError(c, err, nil)
		return id, false
	}
	return id, true
}

// filters 查询串（保留参数除外）转为条件；同名参数取第一个值
func (r *resource[ID, DTO]) filters(c *gin.Context) (criteria.Criteria, error) {
	values := c.Request.URL.Query()
	flat := make(map[string]string, len(values))
	for k, v := range values {
		switch k {
		case paramPage, paramSize, paramSort, paramAll:
			continue
		}
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	return criteria.FromFilters(flat, r.allowed...)
}

func (r *resource[ID, DTO]) count(c *gin.Context) {
	cr, err := r.filters(c)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	var n int64
	if cr.IsEmpty() {
		n, err = r.svc.CountAll(c.Request.Context(), user(c))
	} else {
		n, err = r.svc.Count(c.Request.Context(), cr, user(c))
	}
	reply(c, http.StatusOK, gin.H{"count": n}, err)
}

func (r *resource[ID, DTO]) list(c *gin.Context) {
	cr, err := r.filters(c)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	if c.Query(paramPage) == "" && c.Query(paramSize) == "" {
		items, err := r.svc.GetManyBy(c.Request.Context(), cr, user(c))
		if items == nil {
			items = []DTO{}
		}
		reply(c, http.StatusOK, items, err)
		return
	}

	page, err := r.pageRequest(c)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	result, err := r.svc.GetPage(c.Request.Context(), cr, page, user(c))
	reply(c, http.StatusOK, result, err)
}

// pageRequest 解析 page/size/sort；sort=title,-id 表示 title 升序、id 降序
func (r *resource[ID, DTO]) pageRequest(c *gin.Context) (domain.PageRequest, error) {
	page, size := 1, DefaultPageSize
	var err error
	if v := c.Query(paramPage); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return domain.PageRequest{}, errors.NewBadRequest("无效的页码: %q", v)
		}
	}
	if v := c.Query(paramSize); v != "" {
		if size, err = strconv.Atoi(v); err != nil {
			return domain.PageRequest{}, errors.NewBadRequest("无效的页大小: %q", v)
		}
	}

	var sorts []domain.Sort
	for _, part := range strings.Split(c.Query(paramSort), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s := domain.Sort{Field: strings.TrimPrefix(part, "-"), Desc: strings.HasPrefix(part, "-")}
		if !criteria.IsSafeField(s.Field) || !r.fieldAllowed(s.Field) {
			return domain.PageRequest{}, errors.NewBadRequest("不允许的排序字段: %q", s.Field)
		}
		sorts = append(sorts, s)
	}
	return domain.NewPageRequest(page, size, sorts...), nil
}

func (r *resource[ID, DTO]) fieldAllowed(field string) bool {
	if len(r.allowed) == 0 || field == "id" {
		return true
	}
	for _, a := range r.allowed {
		if a == field {
			return true
		}
	}
	return false
}

func (r *resource[ID, DTO]) get(c *gin.Context) {
	id, ok := r.id(c)
	if !ok {
		return
	}
	dto, err := r.svc.GetOne(c.Request.Context(), id, user(c))
	reply(c, http.StatusOK, dto, err)
}

func (r *resource[ID, DTO]) bind(c *gin.Context, target any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, r.maxBody)
	if err := c.ShouldBindJSON(target); err != nil {
		respondError(c, errors.WrapError(err, errors.ErrCodeInvalidInput, "无效的请求数据"), nil)
		return false
	}
	if hasNil(target) {
		respondError(c, errors.NewBadRequest("请求数据不能为 null"), nil)
		return false
	}
	return true
}

// hasNil 检查解码结果（或切片元素）中是否有 null 指针
func hasNil(target any) bool {
	v := reflect.ValueOf(target).Elem()
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			if isNilValue(v.Index(i)) {
				return true
			}
		}
		return false
	}
	return isNilValue(v)
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map:
		return v.IsNil()
	}
	return false
}

func (r *resource[ID, DTO]) save(c *gin.Context) {
	var dto DTO
	if !r.bind(c, &dto) {
		return
	}
	saved, err := r.svc.Save(c.Request.Context(), dto, user(c))
	reply(c, http.StatusCreated, saved, err)
}

func (r *resource[ID, DTO]) saveMany(c *gin.Context) {
	var dtos []DTO
	if !r.bind(c, &dtos) {
		return
	}
	saved, err := r.svc.SaveMany(c.Request.Context(), dtos, user(c))
	if saved == nil {
		saved = []DTO{}
	}
	reply(c, http.StatusCreated, saved, err)
}

func (r *resource[ID, DTO]) update(c *gin.Context) {
	id, ok := r.id(c)
	if !ok {
		return
	}
	var dto DTO
	if !r.bind(c, &dto) {
		return
	}
	updated, err := r.svc.Update(c.Request.Context(), id, dto, user(c))
	reply(c, http.StatusOK, updated, err)
}

func (r *resource[ID, DTO]) edit(c *gin.Context) {
	id, ok := r.id(c)
	if !ok {
		return
	}
	var kind crud.PatchType
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch mediaType {
	case mimeMergePatch, mimeJSON, "":
		kind = crud.PatchMerge
	case mimeJSONPatch:
		kind = crud.PatchJSON
	default:
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, ErrorResponse{
			Error:     "不支持的补丁格式: " + mediaType,
			Code:      string(errors.ErrCodeInvalidInput),
			RequestID: RequestIDFrom(c),
		})
		return
	}
	doc, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, r.maxBody))
	if err != nil {
		respondError(c, errors.WrapError(err, errors.ErrCodeInvalidInput, "读取请求体失败"), nil)
		return
	}
	edited, err := r.svc.Edit(c.Request.Context(), id, crud.Patch{Type: kind, Document: doc}, user(c))
	reply(c, http.StatusOK, edited, err)
}

func (r *resource[ID, DTO]) delete(c *gin.Context) {
	id, ok := r.id(c)
	if !ok {
		return
	}
	removed, err := r.svc.Delete(c.Request.Context(), id, user(c))
	reply(c, http.StatusOK, gin.H{"id": removed}, err)
}

func (r *resource[ID, DTO]) deleteMany(c *gin.Context) {
	cr, err := r.filters(c)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	var ids []ID
	switch {
	case !cr.IsEmpty():
		ids, err = r.svc.DeleteMany(c.Request.Context(), cr, user(c))
	case c.Query(paramAll) == "true":
		ids, err = r.svc.DeleteAll(c.Request.Context(), user(c))
	default:
		respondError(c, errors.NewBadRequest("删除全部需要 all=true"), nil)
		return
	}
	if ids == nil {
		ids = []ID{}
	}
	reply(c, http.StatusOK, gin.H{"ids": ids, "count": len(ids)}, err)
}
