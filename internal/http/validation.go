package http

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// RegisterValidators adds the request rules used by the shipment payloads to
// gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("currency", validateCurrency); err != nil {
		return err
	}
	return v.RegisterValidation("accessorial_price", validateAccessorialPrice)
}

func validateCurrency(fl validator.FieldLevel) bool {
	return currencyPattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

// validateAccessorialPrice accepts non-negative numbers and numeric strings.
func validateAccessorialPrice(fl validator.FieldLevel) bool {
	field := fl.Field()
	for field.IsValid() && field.Kind() == reflect.Interface {
		if field.IsNil() {
			return false
		}
		field = field.Elem()
	}
	if !field.IsValid() {
		return false
	}

	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		return field.Float() >= 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return field.Int() >= 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.String:
		amount, err := decimal.NewFromString(strings.TrimSpace(field.String()))
		return err == nil && !amount.IsNegative()
	default:
		return false
	}
}
