package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/careops-api/pkg/errors"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

type structValidator struct {
	v *validator.Validate
}

var (
	once     sync.Once
	instance *structValidator
)

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
	"min":      "is too short",
	"max":      "is too long",
	"gte":      "is below the minimum",
	"lte":      "is above the maximum",
	"oneof":    "has an unsupported value",
	"uuid":     "must be a valid uuid",
}

// New returns the shared validator, configured to report json field names
func New() Validator {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(jsonName)
		instance = &structValidator{v: v}
	})
	return instance
}

// RegisterGin applies the same field naming to gin's binding engine
func RegisterGin() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonName)
	}
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// Validate checks struct tags and returns an INVALID_INPUT AppError on failure
func (s *structValidator) Validate(obj interface{}) error {
	if err := s.v.Struct(obj); err != nil {
		return Translate(err)
	}
	return nil
}

// Translate converts binding and validation errors into an AppError
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		msg := messages[first.Tag()]
		if msg == "" {
			msg = "is invalid"
		}
		return errors.BadRequest(fmt.Sprintf("%s %s", first.Field(), msg), err)
	}
	return errors.BadRequest("invalid request body", err)
}
