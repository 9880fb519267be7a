// Package entityid provides identifiers for Labstep entities.
//
// Most Labstep entities are keyed by an integer id. Storage locations are
// keyed by a GUID instead, and their position maps refer to the entities
// placed in them by a Ref of the form "{entityType}-{id}":
//
//	guid, err := entityid.ParseGUID("550e8400-e29b-41d4-a716-446655440000")
//	entityid.NewRef("resource_item", "123").String() // "resource_item-123"
package entityid
