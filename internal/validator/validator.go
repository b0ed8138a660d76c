package validator

import (
	"errors"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// RequestValidator は echo.Validator の実装（リクエストDTOのタグを検証）
type RequestValidator struct {
	v *validatorv10.Validate
}

// New はjsonタグ名でエラーを返すvalidatorを作る
func New() *RequestValidator {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

func (r *RequestValidator) Validate(i interface{}) error {
	return r.v.Struct(i)
}

// Fields はフィールド名 -> 失敗したタグ（"shippingAddress.city": "required"）
func Fields(err error) map[string]string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		ns := fe.Namespace()
		//先頭の構造体名は落とす
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		out[ns] = fe.Tag()
	}
	return out
}
