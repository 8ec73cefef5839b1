package dto

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"nsimbi-wallet/pkg/apperror"
	"nsimbi-wallet/pkg/money"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register installs the custom tags and the decimal type mapping on v.
func Register(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("safe_id", validateSafeID)
	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("money_nonneg", validateMoneyNonNeg)
}

// decimalValue lets tags see a decimal as its canonical string.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateMoney accepts amounts that stay positive after rounding to cents.
func validateMoney(fl validator.FieldLevel) bool {
	return money.Valid(fl.Field().String())
}

// validateMoneyNonNeg accepts zero or a positive amount.
func validateMoneyNonNeg(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	r := money.Round(d)
	return !r.IsNegative() && money.Fits(r)
}

// BindingError converts a ShouldBindJSON failure into a client error.
func BindingError(err error) *apperror.AppError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.ErrPayloadTooLarge()
	}
	if errors.Is(err, io.EOF) {
		return apperror.Validation("Request body is required")
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.Validation(err.Error())
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return apperror.Validation(fmt.Sprintf("%s is required", fe.Field()))
	case "money":
		if amountTooLarge(fe.Value()) {
			return apperror.ErrAmountTooLarge()
		}
		return apperror.ErrInvalidAmount()
	case "money_nonneg":
		if amountTooLarge(fe.Value()) {
			return apperror.Validation(fmt.Sprintf("%s must not exceed 9999999999.99", fe.Field()))
		}
		return apperror.Validation(fmt.Sprintf("%s must not be negative", fe.Field()))
	case "gte":
		return apperror.Validation(fmt.Sprintf("%s must not be negative", fe.Field()))
	case "uuid":
		return apperror.Validation(fmt.Sprintf("%s must be a valid id", fe.Field()))
	case "email":
		return apperror.Validation("email is not a valid address")
	}
	return apperror.Validation(fmt.Sprintf("%s is invalid", fe.Field()))
}

func amountTooLarge(v interface{}) bool {
	var d decimal.Decimal
	switch x := v.(type) {
	case string:
		parsed, err := decimal.NewFromString(x)
		if err != nil {
			return false
		}
		d = parsed
	case decimal.Decimal:
		d = x
	default:
		return false
	}
	return !money.Fits(money.Round(d))
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer. Fields tagged
// `sanitize:"-"` are left untouched.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() || rt.Field(i).Tag.Get("sanitize") == "-" {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		case reflect.Slice:
			for j := 0; j < f.Len(); j++ {
				if item := f.Index(j); item.Kind() == reflect.Struct {
					sanitizeFields(item)
				}
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
