package validation

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/swaggest/jsonschema-go"
	"github.com/xeipuuv/gojsonschema"
)

// FieldError 单个字段的 JSON Schema 校验失败
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 多个字段错误的集合
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e ValidationError) Error() string {
	d, err := json.Marshal(e)
	if err != nil {
		return err.Error()
	}
	return string(d)
}

// SchemaValidator 以 JSON Schema 校验值的 JSON 表示。
//
// schema 可从 Go 结构体反射生成（NewSchemaValidatorFor），结构体标签遵循
// swaggest/jsonschema-go 约定，例如 `required:"true" minLength:"1"`。
type SchemaValidator struct {
	raw    []byte
	schema *gojsonschema.Schema
}

// NewSchemaValidator 从 JSON Schema 文档创建验证器
func NewSchemaValidator(schemaDoc []byte) (*SchemaValidator, error) {
	sch, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaDoc))
	if err != nil {
		return nil, fmt.Errorf("gojsonschema.NewSchema: %w", err)
	}
	return &SchemaValidator{raw: schemaDoc, schema: sch}, nil
}

// NewSchemaValidatorFor 反射 sample 的类型生成 schema
func NewSchemaValidatorFor(sample any) (*SchemaValidator, error) {
	r := jsonschema.Reflector{}
	sch, err := r.Reflect(sample, jsonschema.InlineRefs)
	if err != nil {
		return nil, fmt.Errorf("jsonschema reflect %T: %w", sample, err)
	}
	doc, err := json.Marshal(sch)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return NewSchemaValidator(doc)
}

// MustSchemaFor 与 NewSchemaValidatorFor 相同，失败时 panic
func MustSchemaFor(sample any) *SchemaValidator {
	v, err := NewSchemaValidatorFor(sample)
	if err != nil {
		panic(err)
	}
	return v
}

// Schema 返回 schema 原文
func (v *SchemaValidator) Schema() []byte { return v.raw }

// Validate 将 value 编码为 JSON 后校验
func (v *SchemaValidator) Validate(value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	return v.ValidateJSON(body)
}

// ValidateJSON 校验原始 JSON 文档
func (v *SchemaValidator) ValidateJSON(body []byte) error {
	if len(body) == 0 {
		return ValidationError{Errors: []FieldError{{Field: "(root)", Message: "body is empty"}}}
	}
	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("json schema validate: %w", err)
	}
	if res.Valid() {
		return nil
	}
	return toValidationError(res)
}

func toValidationError(result *gojsonschema.Result) ValidationError {
	errs := make([]FieldError, 0, len(result.Errors()))
	for _, res := range result.Errors() {
		switch res.(type) {
		case *gojsonschema.NumberAllOfError, *gojsonschema.NumberAnyOfError, *gojsonschema.NumberOneOfError:
			continue
		}
		errs = append(errs, FieldError{Field: res.Field(), Message: errorMessage(res)})
	}
	slices.SortFunc(errs, func(a, b FieldError) int { return cmp.Compare(a.Message, b.Message) })
	return ValidationError{Errors: errs}
}

func errorMessage(resErr gojsonschema.ResultError) string {
	switch resErr.(type) {
	case *gojsonschema.RequiredError:
		return fmt.Sprintf("Param '%s' is missing", resErr.Details()["property"])
	case *gojsonschema.StringLengthGTEError:
		return fmt.Sprintf("Param '%s' is too short", resErr.Field())
	case *gojsonschema.StringLengthLTEError:
		return fmt.Sprintf("Param '%s' is too long", resErr.Field())
	case *gojsonschema.InvalidTypeError:
		return fmt.Sprintf("Param '%s' should be of type %s", resErr.Field(), resErr.Details()["expected"])
	case *gojsonschema.EnumError:
		return fmt.Sprintf("Param '%s' must be one of %v", resErr.Field(), resErr.Details()["allowed"])
	case *gojsonschema.DoesNotMatchPatternError:
		return fmt.Sprintf("Param '%s' should match pattern %s", resErr.Field(), resErr.Details()["pattern"])
	default:
		return resErr.Description()
	}
}
