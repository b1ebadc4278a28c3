package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
)

var (
	errCategoryExists      = apperr.Conflict("category already exists").WithReason("CATEGORY_EXISTS")
	errCategoryHasChildren = apperr.BadRequest("category still has child categories").WithReason("CATEGORY_HAS_CHILDREN")
	errParentNotFound      = apperr.NotFound("parent category not found")
)

type categoryCreateRequest struct {
	Name     string `json:"name" binding:"required"`
	Parent   string `json:"parent"`
	IsActive *bool  `json:"isActive"`
}

// Parent is a pointer to a string so that "" can move a category to the root.
type categoryUpdateRequest struct {
	Name     *string `json:"name"`
	Parent   *string `json:"parent"`
	IsActive *bool   `json:"isActive"`
}

func findCategory(ctx context.Context, db *mongo.Database, filter bson.M) (*models.Category, error) {
	filter["isDeleted"] = bson.M{"$ne": true}
	var category models.Category
	err := db.Collection(database.CategoriesCollection).FindOne(ctx, filter).Decode(&category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func categorySlugExists(db *mongo.Database, self primitive.ObjectID) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, slug string) (bool, error) {
		filter := bson.M{"slug": slug}
		if !self.IsZero() {
			filter["_id"] = bson.M{"$ne": self}
		}
		n, err := db.Collection(database.CategoriesCollection).CountDocuments(ctx, filter)
		return n > 0, err
	}
}

func loadParent(ctx context.Context, db *mongo.Database, raw string) (*models.Category, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := parseObjectID(raw, "parent")
	if err != nil {
		return nil, err
	}
	parent, err := findCategory(ctx, db, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, errParentNotFound
	}
	return parent, nil
}

/*
POST /categories
- parent must exist
*/
func CreateCategory(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /categories"
		defer handlePanic(c, log, route)

		var req categoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondError(c, log, route, apperr.BadRequest("name is required"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		parent, err := loadParent(ctx, db, req.Parent)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		slug, err := catalog.UniqueSlug(ctx, name, categorySlugExists(db, primitive.NilObjectID))
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}
		now := time.Now()
		category := models.Category{
			ID:        primitive.NewObjectID(),
			Name:      name,
			Slug:      slug,
			Children:  []primitive.ObjectID{},
			Ancestors: catalog.Ancestors(parent),
			IsActive:  isActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if parent != nil {
			category.Parent = &parent.ID
		}

		coll := db.Collection(database.CategoriesCollection)
		err = database.WithTransaction(ctx, db, func(ctx context.Context) error {
			if _, err := coll.InsertOne(ctx, category); err != nil {
				return err
			}
			if parent == nil {
				return nil
			}
			_, err := coll.UpdateOne(ctx, bson.M{"_id": parent.ID}, bson.M{
				"$addToSet": bson.M{"children": category.ID},
				"$set":      bson.M{"updatedAt": now},
			})
			return err
		})
		if isDuplicateKey(err) {
			respondError(c, log, route, errCategoryExists)
			return
		}
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

/*
PATCH /categories/:id
- no self parent, no descendant as parent
- descendants' ancestor chains follow renames and moves
*/
func UpdateCategory(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /categories/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "category id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		var req categoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if req.Name == nil && req.Parent == nil && req.IsActive == nil {
			respondError(c, log, route, apperr.BadRequest("no changes supplied"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		current, err := findCategory(ctx, db, bson.M{"_id": id})
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if current == nil {
			respondError(c, log, route, errCategoryNotFound)
			return
		}

		updated := *current
		rechain := false
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondError(c, log, route, apperr.BadRequest("name cannot be empty"))
				return
			}
			if name != current.Name {
				slug, err := catalog.UniqueSlug(ctx, name, categorySlugExists(db, id))
				if err != nil {
					respondError(c, log, route, err)
					return
				}
				updated.Name, updated.Slug = name, slug
				rechain = true
			}
		}

		var oldParent, newParent *primitive.ObjectID
		moved := false
		if req.Parent != nil {
			parent, err := loadParent(ctx, db, *req.Parent)
			if err != nil {
				respondError(c, log, route, err)
				return
			}
			if err := catalog.CheckParent(id, parent); err != nil {
				respondError(c, log, route, err)
				return
			}
			if parent != nil {
				newParent = &parent.ID
			}
			if !sameParent(current.Parent, newParent) {
				moved, rechain = true, true
				oldParent = current.Parent
				updated.Parent = newParent
				updated.Ancestors = catalog.Ancestors(parent)
			}
		}
		if req.IsActive != nil {
			updated.IsActive = *req.IsActive
		}
		updated.UpdatedAt = time.Now()

		coll := db.Collection(database.CategoriesCollection)
		err = database.WithTransaction(ctx, db, func(ctx context.Context) error {
			if _, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
				"name":      updated.Name,
				"slug":      updated.Slug,
				"parent":    updated.Parent,
				"ancestors": updated.Ancestors,
				"isActive":  updated.IsActive,
				"updatedAt": updated.UpdatedAt,
			}}); err != nil {
				return err
			}
			if moved {
				if oldParent != nil {
					if _, err := coll.UpdateOne(ctx, bson.M{"_id": *oldParent}, bson.M{"$pull": bson.M{"children": id}}); err != nil {
						return err
					}
				}
				if newParent != nil {
					if _, err := coll.UpdateOne(ctx, bson.M{"_id": *newParent}, bson.M{"$addToSet": bson.M{"children": id}}); err != nil {
						return err
					}
				}
			}
			if !rechain {
				return nil
			}
			return rebaseDescendants(ctx, coll, updated)
		})
		if isDuplicateKey(err) {
			respondError(c, log, route, errCategoryExists)
			return
		}
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func rebaseDescendants(ctx context.Context, coll *mongo.Collection, moved models.Category) error {
	cursor, err := coll.Find(ctx, bson.M{"ancestors._id": moved.ID})
	if err != nil {
		return err
	}
	var descendants []models.Category
	if err := cursor.All(ctx, &descendants); err != nil {
		return err
	}
	if len(descendants) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(descendants))
	for _, d := range descendants {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": d.ID}).
			SetUpdate(bson.M{"$set": bson.M{"ancestors": catalog.Rebase(d, moved)}}))
	}
	_, err = coll.BulkWrite(ctx, writes)
	return err
}

func sameParent(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

/*
DELETE /categories/:id
- soft delete, refused while children exist
*/
func DeleteCategory(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /categories/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "category id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		current, err := findCategory(ctx, db, bson.M{"_id": id})
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if current == nil {
			respondError(c, log, route, errCategoryNotFound)
			return
		}
		if len(current.Children) > 0 {
			respondError(c, log, route, errCategoryHasChildren)
			return
		}

		coll := db.Collection(database.CategoriesCollection)
		err = database.WithTransaction(ctx, db, func(ctx context.Context) error {
			res, err := coll.UpdateOne(ctx,
				bson.M{"_id": id, "children.0": bson.M{"$exists": false}},
				bson.M{"$set": bson.M{"isDeleted": true, "isActive": false, "updatedAt": time.Now()}},
			)
			if err != nil {
				return err
			}
			if res.MatchedCount == 0 {
				return errCategoryHasChildren
			}
			if current.Parent == nil {
				return nil
			}
			_, err = coll.UpdateOne(ctx, bson.M{"_id": *current.Parent}, bson.M{"$pull": bson.M{"children": id}})
			return err
		})
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
