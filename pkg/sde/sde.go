// Package sde exposes the static game-data export as a read-only dictionary.
// The admission checker consults it to reject requests for item types that do
// not exist or are unpublished, before any network traffic happens.
package sde

// TypeInfo is one row of the invTypes reference table.
type TypeInfo struct {
	TypeID    int64
	Name      string
	Published bool
}

// Dictionary is a read-only lookup over the static type table.
type Dictionary interface {
	// LookupType returns the type row for id, or ok=false if the id is not
	// present in the export at all.
	LookupType(id int64) (TypeInfo, bool)
}

// TypeTable is an in-memory Dictionary.
type TypeTable struct {
	types map[int64]TypeInfo
}

// NewTypeTable builds a TypeTable from a list of rows.
func NewTypeTable(rows []TypeInfo) *TypeTable {
	types := make(map[int64]TypeInfo, len(rows))
	for _, row := range rows {
		types[row.TypeID] = row
	}
	return &TypeTable{types: types}
}

// LookupType implements Dictionary.
func (t *TypeTable) LookupType(id int64) (TypeInfo, bool) {
	info, ok := t.types[id]
	return info, ok
}

// Len returns the number of rows in the table.
func (t *TypeTable) Len() int {
	return len(t.types)
}
