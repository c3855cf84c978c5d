package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismet/entitysearch/pkg/model"
)

func TestToRecord(t *testing.T) {
	doc := model.NewDocument()
	doc.SetEntityClass("beer")
	require.NoError(t, doc.SetEntityID("beer-1"))
	require.NoError(t, doc.AddField(model.FieldTitle, "Haake Beck"))
	require.NoError(t, doc.AddField("abv", 4.9))
	require.NoError(t, doc.AddField("specs", map[string]any{"ibu": 28.0}))

	record, err := toRecord(doc)
	require.NoError(t, err)

	assert.Equal(t, "beer", record.EntityClass)
	assert.Equal(t, "beer", record.EntityType) // falls back to the class
	assert.Equal(t, doc.InternalEntityID(), record.EntityID)
	require.Len(t, record.Fields, 3)

	assert.Equal(t, "Haake Beck", record.Fields[0].Value)
	assert.False(t, record.Fields[0].Serialized)
	assert.Equal(t, "4.9", record.Fields[1].Value)
	assert.False(t, record.Fields[1].Serialized)
	assert.True(t, record.Fields[2].Serialized)
}

func TestFromRecord_PreservesMultiValueFields(t *testing.T) {
	doc := model.NewDocument()
	doc.SetEntityClass("beer")
	doc.SetEntityType("special")
	require.NoError(t, doc.SetEntityID("beer-1"))
	require.NoError(t, doc.AddMultiValueField("tag", "pilsner"))
	require.NoError(t, doc.AddMultiValueField("tag", "pilsner"))
	require.NoError(t, doc.AddMultiValueField("tag", "bremen"))

	record, err := toRecord(doc)
	require.NoError(t, err)
	record.ID = 5
	for i := range record.Fields {
		record.Fields[i].ID = int64(i + 1)
	}

	loaded, err := fromRecord(record)
	require.NoError(t, err)

	assert.Equal(t, int64(5), loaded.ID())
	assert.Equal(t, "beer", loaded.EntityClass())
	assert.Equal(t, "special", loaded.EntityType())
	assert.Equal(t, doc.InternalEntityID(), loaded.InternalEntityID())
	assert.Equal(t, []any{"pilsner", "pilsner", "bremen"}, loaded.FieldValue("tag"))

	for i, f := range loaded.InternalFields() {
		assert.Equal(t, int64(i+1), f.ID())
	}
}

func TestRecordRoundTrip_ScalarsBecomeText(t *testing.T) {
	doc := model.NewDocument()
	doc.SetEntityClass("beer")
	require.NoError(t, doc.SetEntityID("beer-1"))
	require.NoError(t, doc.AddField("abv", 4.9))
	require.NoError(t, doc.AddField("organic", true))

	record, err := toRecord(doc)
	require.NoError(t, err)
	loaded, err := fromRecord(record)
	require.NoError(t, err)

	// non-string scalars come back in their canonical text form
	assert.Equal(t, "4.9", loaded.FieldValue("abv"))
	assert.Equal(t, "true", loaded.FieldValue("organic"))
}
