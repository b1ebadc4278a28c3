package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/catalog"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
)

/*
GET /categories
- ?parent=<id> lists children, ?parent=null lists roots
*/
func GetCategories(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories"
		defer handlePanic(c, log, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		filter := bson.M{"isDeleted": bson.M{"$ne": true}}
		if raw, ok := c.GetQuery("parent"); ok {
			raw = strings.TrimSpace(raw)
			if raw == "" || raw == "null" {
				filter["parent"] = nil
			} else {
				id, err := parseObjectID(raw, "parent")
				if err != nil {
					respondError(c, log, route, err)
					return
				}
				filter["parent"] = id
			}
		}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = v == "true"
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		coll := db.Collection(database.CategoriesCollection)
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		opts := options.Find().
			SetSkip((page - 1) * limit).
			SetLimit(limit).
			SetSort(bson.D{{Key: "name", Value: 1}})
		cursor, err := coll.Find(ctx, filter, opts)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		defer cursor.Close(ctx)

		categories := []models.Category{}
		if err := cursor.All(ctx, &categories); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, newPage(categories, page, limit, total))
	}
}

func GetCategory(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories/:idOrSlug"
		defer handlePanic(c, log, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		category, err := findCategory(ctx, db, catalog.IDOrSlug(strings.TrimSpace(c.Param("idOrSlug"))))
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if category == nil {
			respondError(c, log, route, errCategoryNotFound)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}
