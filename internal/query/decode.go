package query

import (
	"errors"
	"fmt"
)

// DecodeError reports an attribute that could not be bound or compiled.
// Path is dotted through bool attributes, e.g. "or.nameEq".
type DecodeError struct {
	Path   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("query attribute %s: %s", e.Path, e.Reason)
}

// Decode builds a record from a parsed YAML or JSON document. Bool
// attributes take nested documents.
func (d *Declaration) Decode(doc map[string]any) (Record, error) {
	rec := d.New()
	for _, a := range d.attrs {
		v, ok := doc[a.Name]
		if !ok || v == nil {
			continue
		}
		if a.Role == RoleBool {
			sub, ok := v.(map[string]any)
			if !ok {
				return Record{}, &DecodeError{Path: a.Name, Reason: fmt.Sprintf("expected a nested document, got %T", v)}
			}
			nested, err := d.Decode(sub)
			if err != nil {
				var de *DecodeError
				if errors.As(err, &de) {
					return Record{}, &DecodeError{Path: a.Name + "." + de.Path, Reason: de.Reason}
				}
				return Record{}, err
			}
			v = nested
		}
		rec = rec.With(a.Name, v)
	}
	for name := range doc {
		if _, ok := d.index[name]; !ok {
			return Record{}, &DecodeError{Path: name, Reason: "unknown attribute"}
		}
	}
	return rec, nil
}
