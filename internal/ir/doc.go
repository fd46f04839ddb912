// Package ir provides the operand values carried by filter expressions.
//
// Filter operands are a closed set of value types (Value is a sealed
// interface): Null, String, Int, Float, Bool, Time, List and Object. Go values
// supplied by callers are converted with Of, which also understands the
// Valuer interface so identity types can present themselves as store-native
// objects (for example {"externalId": ..., "space": ...}).
//
// The package also provides canonical JSON (RFC 8785 key ordering, NFC
// normalised strings) and domain-separated SHA-256 content hashes. Expression
// and statement hashes are computed over the canonical encoding, which makes
// them stable across processes.
//
// ir imports nothing internal; every other package may depend on it.
package ir
