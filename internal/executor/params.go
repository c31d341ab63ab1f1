package executor

import (
	"regexp"

	"github.com/dohr-michael/toolhost/internal/registry"
)

// ValidateArgs checks supplied arguments against the parameter schema and
// returns the validated map. Arguments not declared in the schema are
// dropped. The first violation aborts with INVALID_PARAMS.
func ValidateArgs(params []registry.Parameter, args map[string]any) (map[string]any, *registry.Error) {
	validated := make(map[string]any, len(params))

	for _, p := range params {
		value, present := args[p.Name]
		if !present || value == nil {
			if p.Required {
				return nil, registry.NewError(registry.CodeInvalidParams, "parameter %q is required", p.Name)
			}
			continue
		}

		coerced, err := checkType(p, value)
		if err != nil {
			return nil, err
		}
		if err := checkValidation(p, coerced); err != nil {
			return nil, err
		}
		validated[p.Name] = coerced
	}

	return validated, nil
}

// checkType verifies the value matches the declared type. file and code
// parameters carry string payloads (a path or a source snippet).
func checkType(p registry.Parameter, value any) (any, *registry.Error) {
	switch p.Type {
	case "string", "file", "code":
		s, ok := value.(string)
		if !ok {
			return nil, typeError(p, value)
		}
		return s, nil

	case "number":
		f, ok := toFloat(value)
		if !ok {
			return nil, typeError(p, value)
		}
		return f, nil

	case "boolean":
		b, ok := value.(bool)
		if !ok {
			return nil, typeError(p, value)
		}
		return b, nil

	case "array":
		a, ok := value.([]any)
		if !ok {
			return nil, typeError(p, value)
		}
		return a, nil

	case "object":
		o, ok := value.(map[string]any)
		if !ok {
			return nil, typeError(p, value)
		}
		return o, nil
	}
	return nil, registry.NewError(registry.CodeInvalidParams, "parameter %q has unknown type %q", p.Name, p.Type)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	}
	return 0, false
}

func typeError(p registry.Parameter, value any) *registry.Error {
	return registry.NewError(registry.CodeInvalidParams,
		"parameter %q expects %s, got %T", p.Name, p.Type, value)
}

// checkValidation applies the optional validation rules to a typed value.
func checkValidation(p registry.Parameter, value any) *registry.Error {
	v := p.Validation
	if v == nil {
		return nil
	}

	if s, ok := value.(string); ok {
		if len(v.Enum) > 0 && !containsString(v.Enum, s) {
			return registry.NewError(registry.CodeInvalidParams,
				"parameter %q must be one of %v", p.Name, v.Enum)
		}
		if v.Pattern != "" {
			re, err := regexp.Compile(v.Pattern)
			if err != nil {
				return registry.NewError(registry.CodeInvalidParams,
					"parameter %q has invalid pattern: %v", p.Name, err)
			}
			if !re.MatchString(s) {
				return registry.NewError(registry.CodeInvalidParams,
					"parameter %q does not match pattern %q", p.Name, v.Pattern)
			}
		}
		if v.MinLength != nil && len(s) < *v.MinLength {
			return lengthError(p.Name, "at least", *v.MinLength)
		}
		if v.MaxLength != nil && len(s) > *v.MaxLength {
			return lengthError(p.Name, "at most", *v.MaxLength)
		}
	}

	if f, ok := value.(float64); ok {
		if v.Min != nil && f < *v.Min {
			return registry.NewError(registry.CodeInvalidParams,
				"parameter %q must be >= %v", p.Name, *v.Min)
		}
		if v.Max != nil && f > *v.Max {
			return registry.NewError(registry.CodeInvalidParams,
				"parameter %q must be <= %v", p.Name, *v.Max)
		}
	}

	if a, ok := value.([]any); ok {
		if v.MinLength != nil && len(a) < *v.MinLength {
			return lengthError(p.Name, "at least", *v.MinLength)
		}
		if v.MaxLength != nil && len(a) > *v.MaxLength {
			return lengthError(p.Name, "at most", *v.MaxLength)
		}
	}

	return nil
}

func lengthError(name, bound string, n int) *registry.Error {
	return registry.NewError(registry.CodeInvalidParams,
		"parameter %q must have %s %d elements", name, bound, n)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
