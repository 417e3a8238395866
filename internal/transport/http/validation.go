package httptransport

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"pittmc/backend/internal/domain"
)

var registerOnce sync.Once

// registerValidators adds the edition and device tags to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("edition", editionValidator)
		_ = v.RegisterValidation("device", deviceValidator)
	})
}

var editionValidator validator.Func = func(fl validator.FieldLevel) bool {
	_, err := domain.ParseEdition(fl.Field().String())
	return err == nil
}

var deviceValidator validator.Func = func(fl validator.FieldLevel) bool {
	_, err := domain.ParseDevice(fl.Field().String())
	return err == nil
}

// errBodyTooLarge is surfaced when the body limit middleware cut the read.
var errBodyTooLarge = errors.New("request body too large")

// bindJSON decodes the body into req and turns binding failures into the
// service error vocabulary.
func bindJSON(c *gin.Context, req any) error {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "edition":
			return domain.ErrInvalidEdition
		case "device":
			return domain.ErrInvalidDevice
		default:
			return domain.ErrMissingFields
		}
	}
	return errInvalidBody
}
