package registry

import (
	"regexp"
)

// toolIDRe is the required format for tool ids.
var toolIDRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// validParamTypes are the accepted parameter type names.
var validParamTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
	"file":    true,
	"code":    true,
}

// ValidateDefinition checks a tool definition for structural correctness.
// It is run on every register and update.
func ValidateDefinition(def *ToolDefinition) error {
	if def.ID == "" {
		return NewError(CodeInvalidParams, "tool id is required")
	}
	if !toolIDRe.MatchString(def.ID) {
		return NewError(CodeInvalidParams, "tool id %q is not a valid identifier", def.ID)
	}
	if def.Name == "" {
		return NewError(CodeInvalidParams, "tool %q: name is required", def.ID)
	}
	if def.Description == "" {
		return NewError(CodeInvalidParams, "tool %q: description is required", def.ID)
	}

	if err := validateExecution(def); err != nil {
		return err
	}

	for i := range def.Parameters {
		p := &def.Parameters[i]
		if p.Name == "" {
			return NewError(CodeInvalidParams, "tool %q: parameter at index %d must have a name", def.ID, i)
		}
		if p.Type == "" {
			return NewError(CodeInvalidParams, "tool %q: parameter %q must have a type", def.ID, p.Name)
		}
		if !validParamTypes[p.Type] {
			return NewError(CodeInvalidParams, "tool %q: parameter %q has unknown type %q", def.ID, p.Name, p.Type)
		}
		if p.Validation != nil && p.Validation.Pattern != "" {
			if _, err := regexp.Compile(p.Validation.Pattern); err != nil {
				return NewError(CodeInvalidParams, "tool %q: parameter %q has invalid pattern: %v", def.ID, p.Name, err)
			}
		}
	}

	return nil
}

// validateExecution checks that the backend-specific sub-config matching the
// execution type is present and minimally complete.
func validateExecution(def *ToolDefinition) error {
	switch def.Execution.Type {
	case ExecHTTP:
		if def.Execution.HTTP == nil {
			return NewError(CodeInvalidParams, "tool %q: execution.http is required for type http", def.ID)
		}
		if def.Execution.HTTP.URL == "" {
			return NewError(CodeInvalidParams, "tool %q: execution.http.url is required", def.ID)
		}
	case ExecCommand:
		if def.Execution.Command == nil {
			return NewError(CodeInvalidParams, "tool %q: execution.command is required for type command", def.ID)
		}
		if def.Execution.Command.Command == "" {
			return NewError(CodeInvalidParams, "tool %q: execution.command.command is required", def.ID)
		}
	case ExecScript:
		if def.Execution.Script == nil {
			return NewError(CodeInvalidParams, "tool %q: execution.script is required for type script", def.ID)
		}
		if def.Execution.Script.Code == "" {
			return NewError(CodeInvalidParams, "tool %q: execution.script.code is required", def.ID)
		}
	case ExecFunction:
		if def.Execution.BuiltinFunction == "" {
			return NewError(CodeInvalidParams, "tool %q: execution.builtinFunction is required for type function", def.ID)
		}
	default:
		return NewError(CodeInvalidParams, "tool %q: unknown execution type %q", def.ID, def.Execution.Type)
	}
	return nil
}
