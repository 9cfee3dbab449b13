package crud

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"crudflow/errors"
)

// PatchType 补丁格式
type PatchType string

const (
	// PatchMerge RFC 7386 JSON Merge Patch
	PatchMerge PatchType = "merge"
	// PatchJSON RFC 6902 JSON Patch
	PatchJSON PatchType = "json"
)

// Patch edit 操作的补丁文档
type Patch struct {
	Type     PatchType
	Document []byte
}

// MergePatch 构造 merge patch
func MergePatch(doc []byte) Patch { return Patch{Type: PatchMerge, Document: doc} }

// JSONPatch 构造 RFC 6902 patch
func JSONPatch(doc []byte) Patch { return Patch{Type: PatchJSON, Document: doc} }

// MergePatchOf 将任意值编码为 merge patch
func MergePatchOf(v any) (Patch, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return Patch{}, errors.WrapError(err, errors.ErrCodeInvalidInput, "补丁编码失败")
	}
	return MergePatch(doc), nil
}

// Validate 检查补丁文档结构，失败返回 INVALID_INPUT
func (p Patch) Validate() error {
	if len(p.Document) == 0 {
		return errors.NewBadRequest("补丁文档为空")
	}
	switch p.Type {
	case PatchMerge, "":
		if !json.Valid(p.Document) {
			return errors.NewBadRequest("merge patch 不是合法的 JSON")
		}
		var obj map[string]any
		if err := json.Unmarshal(p.Document, &obj); err != nil {
			return errors.NewBadRequest("merge patch 必须是 JSON 对象")
		}
	case PatchJSON:
		if _, err := jsonpatch.DecodePatch(p.Document); err != nil {
			return errors.WrapError(err, errors.ErrCodeInvalidInput, "json patch 解析失败")
		}
	default:
		return errors.NewBadRequest("不支持的补丁格式: %q", p.Type)
	}
	return nil
}

// Apply 将补丁应用到原始 JSON 文档
func (p Patch) Apply(original []byte) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Type {
	case PatchJSON:
		patch, err := jsonpatch.DecodePatch(p.Document)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeInvalidInput, "json patch 解析失败")
		}
		out, err := patch.Apply(original)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeInvalidInput, "json patch 应用失败")
		}
		return out, nil
	default:
		out, err := jsonpatch.MergePatch(original, p.Document)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeInvalidInput, "merge patch 应用失败")
		}
		return out, nil
	}
}
