package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type taggedDoc struct {
	Tags StringList `bson:"tags"`
}

func TestStringListDecodesLegacyString(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"tags": " Summer, cotton ,summer,"})
	require.NoError(t, err)

	var doc taggedDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, StringList{"summer", "cotton"}, doc.Tags)
}

func TestStringListDecodesArrayAndNull(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"tags": bson.A{"Red", "red", "Blue"}})
	require.NoError(t, err)

	var doc taggedDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, StringList{"red", "blue"}, doc.Tags)

	raw, err = bson.Marshal(bson.M{"tags": nil})
	require.NoError(t, err)
	var empty taggedDoc
	require.NoError(t, bson.Unmarshal(raw, &empty))
	assert.Empty(t, empty.Tags)
}

func TestStringListRejectsOtherTypes(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"tags": 12})
	require.NoError(t, err)

	var doc taggedDoc
	assert.Error(t, bson.Unmarshal(raw, &doc))
}

func TestProductImages(t *testing.T) {
	hover := 1
	p := Product{ImagesURL: []string{"a.png", "b.png"}, TopImageIndex: 5, HoverImageIndex: &hover}
	assert.Equal(t, "a.png", p.TopImage())
	assert.Equal(t, "b.png", p.HoverImage())

	p.HoverImageIndex = nil
	assert.Equal(t, "", p.HoverImage())
}
