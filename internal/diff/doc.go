// Package diff compares two item collections or two settings maps.
//
// Items are opaque JSON objects. Each item is matched across sides by a key
// derived by ItemKey:
//
//	uuid          "uuid:" + uuid
//	id            "id:" + id
//	name          "name:" + lower(trim(name)) + "|" + year + "|" + country + "|" + denomination
//	anything else "hash:" + xxhash of the item's canonical JSON
//
// Volatile fields (displayOrder, cachedValue, lastViewed) never take part in
// keys or comparisons. Changing the derivation invalidates every persisted
// ancestry snapshot, so treat it as part of the storage format.
//
// Values are compared with Equal, which treats numbers and numeric strings
// as equal when they denote the same number.
package diff
