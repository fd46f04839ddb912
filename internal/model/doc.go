// Package model describes view types: their identity, configuration and
// declared fields.
//
// A view model is a Go struct embedding ViewInstance (or one of its
// WritableViewInstance / AggregatedViewInstance variants). Describe builds a
// Descriptor for such a struct once per type and caches it; the descriptor is
// the field table consulted by the expression builders, the schema reflector
// and the ID generator. Views that only exist as schema files (no Go type) are
// described with DescriptorBuilder and linked by name through a Registry.
//
// Wire names follow encoding/json: the json tag name when present, otherwise
// the Go field name with its first rune lower-cased.
package model
