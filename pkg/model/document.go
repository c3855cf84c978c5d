package model

import (
	"errors"

	"github.com/prismet/entitysearch/internal/codec"
)

// ErrEmptyFieldName is returned when a field is added without a name.
var ErrEmptyFieldName = errors.New("field name must not be empty")

// Document is one indexed unit: a bag of named fields with identity linking
// it back to a source entity.
type Document interface {
	// AddField sets the value of the named field, replacing any existing
	// field with the same name.
	AddField(name string, value any) error
	// AddMultiValueField attaches an additional field under the given name
	// without replacing existing ones. This is how one logical attribute
	// carries multiple values.
	AddMultiValueField(name string, value any) error
	// FieldValue returns nil if no field matches, the single value if
	// exactly one field matches, or an ordered []any if several fields
	// share the name.
	FieldValue(name string) any
	// Fields returns a name-to-value mapping. Names with several underlying
	// fields collapse to an ordered []any.
	Fields() map[string]any

	EntityClass() string
	SetEntityClass(class string)
	// EntityType returns the display/group type, defaulting to the entity
	// class when unset.
	EntityType() string
	SetEntityType(entityType string)
	// SetEntityID encodes the given identifier (scalar or composite) to its
	// storable form.
	SetEntityID(id any) error
	// EntityID decodes and returns the identifier set via SetEntityID.
	EntityID() (any, error)
	// InternalEntityID returns the encoded identifier used as the lookup
	// key for upsert and delete.
	InternalEntityID() string
}

// BaseDocument is the relational backend's document implementation.
type BaseDocument struct {
	id          int64
	entityClass string
	entityType  string
	entityID    string
	fields      []*Field
}

// NewDocument creates an empty document.
func NewDocument() *BaseDocument {
	return &BaseDocument{}
}

// ID returns the persistence identifier, zero until the document is stored.
func (d *BaseDocument) ID() int64 {
	return d.id
}

// SetID records the persistence identifier.
func (d *BaseDocument) SetID(id int64) {
	d.id = id
}

// AddField sets the value of the named field. Repeated calls with the same
// name replace the existing field's value instead of adding a second field.
func (d *BaseDocument) AddField(name string, value any) error {
	if name == "" {
		return ErrEmptyFieldName
	}
	for _, f := range d.fields {
		if f.name == name {
			f.value = value
			return nil
		}
	}
	d.appendField(name, value)
	return nil
}

// AddMultiValueField attaches an additional field under the given name. No
// replacement or merging happens; each call adds one more field.
func (d *BaseDocument) AddMultiValueField(name string, value any) error {
	if name == "" {
		return ErrEmptyFieldName
	}
	d.appendField(name, value)
	return nil
}

func (d *BaseDocument) appendField(name string, value any) {
	f := &Field{name: name, value: value, doc: d}
	d.fields = append(d.fields, f)
}

// FieldValue returns nil if no field matches the name, the single value if
// exactly one field matches, or an ordered []any if several fields share
// the name.
func (d *BaseDocument) FieldValue(name string) any {
	var values []any
	for _, f := range d.fields {
		if f.name == name {
			values = append(values, f.value)
		}
	}
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}

// Fields returns a mapping from field name to value. A name with several
// underlying fields collapses to an ordered []any, a name with one field to
// its scalar value.
func (d *BaseDocument) Fields() map[string]any {
	result := make(map[string]any, len(d.fields))
	counts := make(map[string]int, len(d.fields))
	for _, f := range d.fields {
		counts[f.name]++
	}
	for _, f := range d.fields {
		if counts[f.name] == 1 {
			result[f.name] = f.value
			continue
		}
		existing, _ := result[f.name].([]any)
		result[f.name] = append(existing, f.value)
	}
	return result
}

// InternalFields returns the ordered field collection for persistence.
func (d *BaseDocument) InternalFields() []*Field {
	return d.fields
}

// EntityClass returns the logical type name of the source entity.
func (d *BaseDocument) EntityClass() string {
	return d.entityClass
}

// SetEntityClass sets the logical type name of the source entity.
func (d *BaseDocument) SetEntityClass(class string) {
	d.entityClass = class
}

// EntityType returns the display/group type, falling back to the entity
// class when no distinct type was set.
func (d *BaseDocument) EntityType() string {
	if d.entityType == "" {
		return d.entityClass
	}
	return d.entityType
}

// SetEntityType sets a display/group type distinct from the entity class.
func (d *BaseDocument) SetEntityType(entityType string) {
	d.entityType = entityType
}

// SetEntityID encodes the identifier to its storable form. Composite keys
// round-trip through the codec.
func (d *BaseDocument) SetEntityID(id any) error {
	encoded, err := codec.EncodeID(id)
	if err != nil {
		return err
	}
	d.entityID = encoded
	return nil
}

// EntityID decodes and returns the identifier set via SetEntityID.
func (d *BaseDocument) EntityID() (any, error) {
	if d.entityID == "" {
		return nil, nil
	}
	return codec.DecodeID(d.entityID)
}

// InternalEntityID returns the encoded identifier. Together with the entity
// class it forms the key documents are upserted and deleted by.
func (d *BaseDocument) InternalEntityID() string {
	return d.entityID
}

// SetInternalEntityID restores an already-encoded identifier when loading a
// document from storage.
func (d *BaseDocument) SetInternalEntityID(encoded string) {
	d.entityID = encoded
}
