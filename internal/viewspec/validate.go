package viewspec

import (
	"fmt"
	"strings"
)

// Validation error codes (E200-E299).
const (
	ErrNoViews          = "E200" // no view declared
	ErrInvalidKind      = "E201" // unknown view kind
	ErrInvalidFieldType = "E202" // empty or malformed field type
	ErrUnknownTarget    = "E203" // relation to an undeclared view
	ErrDuplicateName    = "E204" // duplicate field name or alias
	ErrIdentityField    = "E205" // externalId or space redeclared with another type
	ErrAggregatedValue  = "E206" // aggregated view redeclares value with a non numeric type
	ErrNestedConfig     = "E207" // nested view carries instance configuration
)

// ValidationError is one problem found in a view declaration.
type ValidationError struct {
	View    string `json:"view"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s.%s: %s", e.Code, e.Line, e.View, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.View, e.Field, e.Message)
}

// ValidationErrors is returned by Load when declarations are inconsistent.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d invalid view declaration(s): %s", len(errs), strings.Join(msgs, "; "))
}

// Validate checks a set of declarations against each other. It reports
// every problem rather than stopping at the first.
func Validate(views []View) []ValidationError {
	if len(views) == 0 {
		return []ValidationError{{Field: "view", Message: "no views declared", Code: ErrNoViews}}
	}

	declared := make(map[string]bool, len(views))
	for _, v := range views {
		declared[v.Name] = true
	}

	var errs []ValidationError
	for _, v := range views {
		errs = append(errs, validateView(v, declared)...)
	}
	return errs
}

func validateView(v View, declared map[string]bool) []ValidationError {
	var errs []ValidationError
	report := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			View:    v.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    v.Pos.Line(),
		})
	}

	if _, ok := kinds[v.Kind]; !ok {
		report("kind", ErrInvalidKind, "unknown kind %q, must be view, writable, aggregated or nested", v.Kind)
	}
	if v.Kind == "nested" && (len(v.Config.InstanceSpaces) > 0 || v.Config.InstanceSpacesPrefix != "") {
		report("spaces", ErrNestedConfig, "nested views have no instance spaces")
	}

	names := make(map[string]bool, len(v.Fields))
	aliases := make(map[string]bool, len(v.Fields))
	for _, f := range v.Fields {
		alias := f.Alias
		if alias == "" {
			alias = f.Name
		}
		if names[f.Name] {
			report(f.Name, ErrDuplicateName, "duplicate field name %q", f.Name)
		}
		if aliases[alias] {
			report(f.Name, ErrDuplicateName, "duplicate field alias %q", alias)
		}
		names[f.Name] = true
		aliases[alias] = true

		switch {
		case strings.TrimSpace(f.Type) == "" || strings.ContainsAny(f.Type, " \t"):
			report(f.Name, ErrInvalidFieldType, "invalid type %q", f.Type)
		case f.IsRelation() && !declared[f.Type]:
			report(f.Name, ErrUnknownTarget, "type %q is neither a scalar type nor a declared view", f.Type)
		}

		if (v.Kind == "view" || v.Kind == "writable") && (alias == "externalId" || alias == "space") {
			if f.Type != "string" || f.List {
				report(f.Name, ErrIdentityField, "%s must be a single string", alias)
			}
		}
		if v.Kind == "aggregated" && alias == "value" && f.Type != "float" && f.Type != "int" {
			report(f.Name, ErrAggregatedValue, "value must be int or float, got %q", f.Type)
		}
	}
	return errs
}
