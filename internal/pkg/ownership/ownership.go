// Package ownership restricts queries over owned resources to a single owner.
//
// Every read, update and delete of a todo goes through Scope so that a query
// without the owner constraint cannot reach storage.
package ownership

// Scope returns a copy of query with field set to owner. A caller-supplied
// value for field is overwritten. owner is whatever the backend stores in the
// owner field (a string column, an ObjectID, ...).
func Scope[M ~map[string]any](field string, owner any, query M) M {
	scoped := make(M, len(query)+1)
	for k, v := range query {
		scoped[k] = v
	}
	scoped[field] = owner
	return scoped
}

// Owns reports whether a record owned by recordOwner is visible to owner.
func Owns(owner, recordOwner string) bool {
	return owner != "" && owner == recordOwner
}
