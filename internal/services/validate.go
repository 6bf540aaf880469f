package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/taskforge/apiserver/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("nopassword", func(fl validator.FieldLevel) bool {
		return !strings.Contains(strings.ToLower(fl.Field().String()), "password")
	})
	return v
}

// normalizeProfile trims every text field and lower-cases the email.
func normalizeProfile(p types.Profile) types.Profile {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Password = strings.TrimSpace(p.Password)
	return p
}

func validateProfile(p types.Profile) error {
	return translate(validate.Struct(p))
}

func validatePassword(password string) error {
	if err := validate.Var(password, "required,min=7,nopassword"); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invalid("password", passwordMessage(verrs[0].Tag()))
		}
		return invalid("password", "is invalid")
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("", err.Error())
	}
	fe := verrs[0]
	field := fe.Field()
	switch field {
	case "password":
		return invalid(field, passwordMessage(fe.Tag()))
	case "email":
		if fe.Tag() == "email" {
			return invalid(field, "Email is invalid")
		}
	case "age":
		return invalid(field, "Age must be a positive number")
	}
	return invalid(field, "is required")
}

func passwordMessage(tag string) string {
	switch tag {
	case "nopassword":
		return "Password must not contain the word password"
	case "min":
		return "Password must be at least 7 characters"
	default:
		return "is required"
	}
}
