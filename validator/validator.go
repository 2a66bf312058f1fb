// Package validator 封装 go-playground/validator，把结构体校验失败翻译为统一的 ValidationError。
package validator

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wyfcoding/derivkit/xerrors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Instance 返回进程内共享的校验器，首次调用时注册自定义标签。
func Instance() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		// finite: 浮点数必须是有限值。
		_ = instance.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field()
			if f.Kind() != reflect.Float64 && f.Kind() != reflect.Float32 {
				return true
			}
			v := f.Float()
			return !math.IsNaN(v) && !math.IsInf(v, 0)
		})
		instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return instance
}

// Struct 校验结构体，第一个失败字段决定返回的错误种类。
func Struct(v any) error {
	err := Instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return xerrors.Validation("invalid contract", err.Error())
	}

	fe := verrs[0]
	var out *xerrors.Error
	switch {
	case fe.Field() == "correlation":
		out = xerrors.ErrCorrelationRange.Derive("%s=%v", fe.Namespace(), fe.Value())
	case fe.Tag() == "gt" || fe.Tag() == "gte":
		out = xerrors.ErrNonPositive.Derive("%s=%v must be %s %s", fe.Namespace(), fe.Value(), fe.Tag(), fe.Param())
	case fe.Tag() == "finite":
		out = xerrors.ErrNonFinite.Derive("%s=%v", fe.Namespace(), fe.Value())
	default:
		out = xerrors.ErrMissingTerms.Derive("%s failed %s", fe.Namespace(), fe.Tag())
	}
	return out.WithContext("field", fe.Namespace()).WithContext("violations", len(verrs))
}
