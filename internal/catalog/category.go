package catalog

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// Ancestors returns the ancestor chain of a child placed under parent.
func Ancestors(parent *models.Category) []models.CategoryRef {
	if parent == nil {
		return []models.CategoryRef{}
	}
	out := make([]models.CategoryRef, 0, len(parent.Ancestors)+1)
	out = append(out, parent.Ancestors...)
	return append(out, models.CategoryRef{ID: parent.ID, Name: parent.Name, Slug: parent.Slug})
}

// CheckParent rejects moving category id under itself or one of its descendants.
func CheckParent(id primitive.ObjectID, parent *models.Category) error {
	if parent == nil {
		return nil
	}
	if parent.ID == id {
		return apperr.BadRequest("category cannot be its own parent")
	}
	for _, a := range parent.Ancestors {
		if a.ID == id {
			return apperr.BadRequest("cannot set a descendant as parent")
		}
	}
	return nil
}

// Rebase rewrites the ancestor chain of a descendant of moved so that it
// starts below moved's current position. moved carries its new ancestors,
// name and slug.
func Rebase(descendant models.Category, moved models.Category) []models.CategoryRef {
	chain := Ancestors(&moved)
	for i, a := range descendant.Ancestors {
		if a.ID == moved.ID {
			return append(chain, descendant.Ancestors[i+1:]...)
		}
	}
	return descendant.Ancestors
}
