package descriptor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the descriptor fields and the service list invariants.
// Every problem found is reported, not just the first.
func Validate(d Descriptor) error {
	var errs []error

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}

	if !d.HasBackend(SocketService) {
		errs = append(errs, fmt.Errorf("%w: backend list is missing the mandatory %q service", ErrProtectedService, SocketService))
	}

	seen := make(map[string]bool, len(d.Backends))
	for _, b := range d.Backends {
		if err := ValidateName(b); err != nil {
			errs = append(errs, fmt.Errorf("backend: %w", err))
			continue
		}
		if seen[b] {
			errs = append(errs, fmt.Errorf("%w: backend %q listed twice", ErrDuplicateServiceName, b))
		}
		seen[b] = true
	}

	seen = make(map[string]bool, len(d.Frontends))
	for _, f := range d.Frontends {
		if err := ValidateName(f.Name); err != nil {
			errs = append(errs, fmt.Errorf("frontend: %w", err))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("%w: frontend %q listed twice", ErrDuplicateServiceName, f.Name))
		}
		seen[f.Name] = true
	}

	return errors.Join(errs...)
}

func fieldError(fe validator.FieldError) error {
	field := strings.TrimPrefix(fe.Namespace(), "Descriptor.")
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "fqdn":
		return fmt.Errorf("%s: %q is not a fully qualified domain name", field, fe.Value())
	case "email":
		return fmt.Errorf("%s: %q is not a valid email address", field, fe.Value())
	case "oneof":
		return fmt.Errorf("%s: %q must be one of: %s", field, fe.Value(), fe.Param())
	}
	return fmt.Errorf("%s: failed %q check", field, fe.Tag())
}
