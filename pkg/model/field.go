package model

// Well-known field names. Title and content are the default searchable
// fields; FieldType is a reserved facet name that is resolved against a
// document's entity type rather than a stored field.
const (
	FieldTitle   = "title"
	FieldContent = "content"
	FieldType    = "type"
)

// Field is one named value belonging to a document. Scalar values are kept
// verbatim; structured values (slices, maps, structs) are opaquely encoded
// when the field is persisted and restored on read.
type Field struct {
	id    int64
	name  string
	value any
	doc   *BaseDocument
}

// ID returns the persistence identifier, zero until the field is stored.
func (f *Field) ID() int64 {
	return f.id
}

// SetID records the persistence identifier.
func (f *Field) SetID(id int64) {
	f.id = id
}

// Name returns the field name.
func (f *Field) Name() string {
	return f.name
}

// Value returns the field value.
func (f *Field) Value() any {
	return f.value
}

// SetValue replaces the field value.
func (f *Field) SetValue(value any) {
	f.value = value
}

// Document returns the owning document. The back-reference exists for
// persistence wiring only; traversal always starts at the document.
func (f *Field) Document() *BaseDocument {
	return f.doc
}
