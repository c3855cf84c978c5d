package search

import (
	"github.com/prismet/entitysearch/internal/codec"
	"github.com/prismet/entitysearch/internal/storage"
	"github.com/prismet/entitysearch/pkg/model"
)

// toRecord converts a document to its persisted form. Field values pass
// through the codec: scalars keep their text form, structured values are
// serialized and flagged.
func toRecord(doc *model.BaseDocument) (*storage.DocumentRecord, error) {
	record := &storage.DocumentRecord{
		ID:          doc.ID(),
		EntityClass: doc.EntityClass(),
		EntityType:  doc.EntityType(),
		EntityID:    doc.InternalEntityID(),
	}
	for _, field := range doc.InternalFields() {
		text, serialized, err := codec.EncodeValue(field.Value())
		if err != nil {
			return nil, err
		}
		record.Fields = append(record.Fields, storage.FieldRecord{
			Name:       field.Name(),
			Value:      text,
			Serialized: serialized,
		})
	}
	return record, nil
}

// fromRecord rebuilds a document from its persisted form, decoding each
// field value according to its serialized flag.
func fromRecord(record *storage.DocumentRecord) (*model.BaseDocument, error) {
	doc := model.NewDocument()
	doc.SetID(record.ID)
	doc.SetEntityClass(record.EntityClass)
	doc.SetEntityType(record.EntityType)
	doc.SetInternalEntityID(record.EntityID)

	for _, field := range record.Fields {
		value, err := codec.DecodeValue(field.Value, field.Serialized)
		if err != nil {
			return nil, err
		}
		// Multi-value add: loading must preserve duplicate field names
		if err := doc.AddMultiValueField(field.Name, value); err != nil {
			return nil, err
		}
	}
	for i, field := range doc.InternalFields() {
		field.SetID(record.Fields[i].ID)
	}
	return doc, nil
}
