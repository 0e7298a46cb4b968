package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// report variable names instead of Go field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := fld.Tag.Get("envconfig"); name != "" {
				return name
			}
			return fld.Name
		})
		if err := v.RegisterValidation("urlscheme", validateURLScheme); err != nil {
			panic(err)
		}
		validate = v
	})
	return validate
}

// validateURLScheme accepts absolute URLs with a host whose scheme is one of
// the space separated tag parameters.
func validateURLScheme(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	for _, allowed := range strings.Fields(fl.Param()) {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// Validate checks every rule and returns a single *Error listing all failures
func (c *Config) Validate() error {
	var problems []string

	if err := validatorInstance().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &Error{Problems: []string{err.Error()}}
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.IsProduction() {
		problems = append(problems, c.productionProblems()...)
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

func (c *Config) productionProblems() []string {
	required := []struct {
		name  string
		value string
	}{
		{"SECRET_KEY", c.SecretKey},
		{"DATABASE_URL", c.DatabaseURL},
		{"REDIS_URL", c.RedisURL},
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
		{"ANTHROPIC_API_KEY", c.AnthropicAPIKey},
	}

	var problems []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, fmt.Sprintf("%s is required in production", r.name))
		}
	}
	return problems
}

// describe renders a field error without echoing the offending value
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "urlscheme":
		return fmt.Sprintf("%s must be a URL with one of the schemes: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}
