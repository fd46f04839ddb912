// Package viewspec reads view declarations written in CUE and turns them
// into dynamic model descriptors.
//
// A declaration file looks like:
//
//	view: Asset: {
//		externalId:   "CogniteAsset"
//		code:         "AST"
//		kind:         "writable"
//		spacesPrefix: "plant-"
//		fields: {
//			name: type:     "string"
//			parent: type:   "Asset"
//			children: {type: "Asset", list: true}
//		}
//	}
//
// Field types are scalar names (string, int, float, bool, timestamp,
// reference, object, any) or the name of another declared view, which makes
// the field a relation. Fields keep their declaration order.
package viewspec
