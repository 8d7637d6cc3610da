// Package validation декодирует и проверяет тела HTTP-запросов.
package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/model"
)

var (
	phonePattern    = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,19}$`)
	bankCodePattern = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})

	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "bankcode", func(fl validator.FieldLevel) bool {
		return bankCodePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "payment_method", func(fl validator.FieldLevel) bool {
		return model.PaymentMethod(fl.Field().String()).IsValid()
	})
	mustRegister(v, "order_status", func(fl validator.FieldLevel) bool {
		return model.OrderStatus(fl.Field().String()).IsValid()
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// DecodeJSONBody читает JSON из тела запроса в dest и проверяет теги validate.
// Неизвестные поля и нарушения правил возвращаются как ошибка VALIDATION_ERROR.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return apperror.Wrap(apperror.CodeValidation, err, "invalid request body")
	}

	return Struct(dest)
}

// Struct проверяет теги validate у уже заполненной структуры.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// ParseQueryInt читает целочисленный параметр запроса в диапазоне [lo, hi].
func ParseQueryInt(r *http.Request, key string, defaultVal, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation(fmt.Sprintf("query parameter %s must be numeric", key))
	}
	if value < lo || value > hi {
		return 0, apperror.Validation(fmt.Sprintf("query parameter %s must be between %d and %d", key, lo, hi))
	}
	return value, nil
}

func formatValidationErrors(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperror.Wrap(apperror.CodeValidation, err, "validation failed")
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fe.Field()+" "+validationMessage(fe))
	}
	sort.Strings(msgs)

	return apperror.Validation("validation failed: " + strings.Join(msgs, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "phone":
		return "must be a valid phone number"
	case "bankcode":
		return "must be an uppercase bank code"
	case "payment_method":
		return "must be a supported payment method"
	case "order_status":
		return "must be a known order status"
	}
	return "is invalid"
}
