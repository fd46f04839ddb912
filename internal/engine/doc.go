// Package engine executes statements against a store adapter.
//
// The engine is the bridge between the pure statement builders and a
// concrete store. For every statement it:
//  1. Validates the statement values (filters, limit, aggregation)
//  2. Asks the schema reflector which property paths the view exposes
//  3. Sends a request to the Adapter
//  4. Decodes the returned documents into the caller's view model type
//
// Decoding uses encoding/json, so wire names are the json tags of the view
// model. Edge metadata returned with a document is attached to the decoded
// instance when the model embeds model.ViewInstance.
//
// The engine keeps no state between calls; it is safe for concurrent use if
// the adapter is.
package engine
