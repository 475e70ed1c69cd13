package service

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"gallery/internal/pagination"
	"gallery/internal/repository"
)

// ErrInvalidInput 表示请求参数校验失败。
var ErrInvalidInput = errors.New("invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct 执行结构体校验，并把校验错误包装为 ErrInvalidInput。
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %q", ErrInvalidInput, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notInitialized(name string) error {
	return fmt.Errorf("%s service not initialized", name)
}

// paginate 先统计总数再计算页描述，返回的 ListParams 可直接用于查询。
func paginate(total int, query url.Values, opts pagination.Options) (*pagination.Page, repository.ListParams, error) {
	page, err := pagination.New(total, query, opts)
	if err != nil {
		return nil, repository.ListParams{}, err
	}
	return page, repository.ListParams{Limit: page.Limit(), Offset: page.Offset()}, nil
}

// ParseIDs 解析多值 ID 参数，忽略无法解析的值。
func ParseIDs(values []string) []int64 {
	var ids []int64
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}
