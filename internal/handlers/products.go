package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
)

var (
	errProductNotFound  = apperr.NotFound("product not found")
	errVariantNotFound  = apperr.NotFound("variant not found")
	errCategoryNotFound = apperr.NotFound("category not found")
	errSlugTaken        = apperr.Conflict("slug already in use").WithReason("SLUG_TAKEN")
)

/* =======================
   REQUEST MODELS
======================= */

type productCreateRequest struct {
	Title           string                 `json:"title" binding:"required"`
	Description     string                 `json:"description"`
	Tags            []string               `json:"tags"`
	Category        string                 `json:"category"`
	Options         []string               `json:"options"`
	BasePrice       *float64               `json:"basePrice" binding:"required"`
	ImagesURL       []string               `json:"imagesUrl"`
	TopImageIndex   int                    `json:"topImageIndex"`
	HoverImageIndex *int                   `json:"hoverImageIndex"`
	Variants        []catalog.VariantInput `json:"variants" binding:"dive"`
}

type productUpdateRequest struct {
	Title           *string   `json:"title"`
	Description     *string   `json:"description"`
	Tags            *[]string `json:"tags"`
	Category        *string   `json:"category"`
	Options         *[]string `json:"options"`
	BasePrice       *float64  `json:"basePrice"`
	ImagesURL       *[]string `json:"imagesUrl"`
	TopImageIndex   *int      `json:"topImageIndex"`
	HoverImageIndex *int      `json:"hoverImageIndex"`
}

type variantUpdateRequest struct {
	Options *map[string]string `json:"options"`
	SKU     *string            `json:"sku"`
	Price   *float64           `json:"price"`
	Stock   *int               `json:"stock"`
}

type productDetail struct {
	models.Product
	Variants   []models.ProductVariant `json:"variants"`
	TopImage   string                  `json:"topImage"`
	HoverImage string                  `json:"hoverImage,omitempty"`
}

/* =======================
   HELPERS
======================= */

func parseFloatQuery(c *gin.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.BadRequest("invalid %s", name)
	}
	return &v, nil
}

func productSlugExists(db *mongo.Database, self primitive.ObjectID) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, slug string) (bool, error) {
		filter := bson.M{"slug": slug}
		if !self.IsZero() {
			filter["_id"] = bson.M{"$ne": self}
		}
		n, err := db.Collection(database.ProductsCollection).CountDocuments(ctx, filter)
		return n > 0, err
	}
}

// resolveCategory returns nil for an empty id and errCategoryNotFound when the
// category is missing or deleted.
func resolveCategory(ctx context.Context, db *mongo.Database, raw string) (*primitive.ObjectID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := parseObjectID(raw, "category")
	if err != nil {
		return nil, err
	}
	n, err := db.Collection(database.CategoriesCollection).CountDocuments(ctx, bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errCategoryNotFound
	}
	return &id, nil
}

/* =======================
   PUBLIC
======================= */

func GetProducts(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, log, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		q := catalog.ProductQuery{Search: c.Query("search"), Tags: c.QueryArray("tags")}
		if raw := strings.TrimSpace(c.Query("category")); raw != "" {
			id, err := parseObjectID(raw, "category")
			if err != nil {
				respondError(c, log, route, err)
				return
			}
			q.Category = &id
		}
		if q.MinPrice, err = parseFloatQuery(c, "minPrice"); err != nil {
			respondError(c, log, route, err)
			return
		}
		if q.MaxPrice, err = parseFloatQuery(c, "maxPrice"); err != nil {
			respondError(c, log, route, err)
			return
		}
		filter, err := q.Filter()
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		coll := db.Collection(database.ProductsCollection)
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		opts := options.Find().
			SetSkip((page - 1) * limit).
			SetLimit(limit).
			SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := coll.Find(ctx, filter, opts)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		defer cursor.Close(ctx)

		products := []models.Product{}
		if err := cursor.All(ctx, &products); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, newPage(products, page, limit, total))
	}
}

func GetProduct(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:idOrSlug"
		defer handlePanic(c, log, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		product, err := catalog.FindProduct(ctx, db, catalog.IDOrSlug(strings.TrimSpace(c.Param("idOrSlug"))))
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if product == nil {
			respondError(c, log, route, errProductNotFound)
			return
		}
		variants, err := catalog.VariantsForProduct(ctx, db, product.ID)
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		c.JSON(http.StatusOK, productDetail{
			Product:    *product,
			Variants:   variants,
			TopImage:   product.TopImage(),
			HoverImage: product.HoverImage(),
		})
	}
}

/* =======================
   ADMIN
======================= */

func CreateProduct(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products"
		defer handlePanic(c, log, route)

		var req productCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if *req.BasePrice < 0 {
			respondError(c, log, route, apperr.BadRequest("basePrice cannot be negative"))
			return
		}
		if err := catalog.CheckImageIndexes(req.ImagesURL, req.TopImageIndex, req.HoverImageIndex); err != nil {
			respondError(c, log, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		category, err := resolveCategory(ctx, db, req.Category)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		slug, err := catalog.UniqueSlug(ctx, req.Title, productSlugExists(db, primitive.NilObjectID))
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		now := time.Now()
		product := models.Product{
			ID:              primitive.NewObjectID(),
			Title:           strings.TrimSpace(req.Title),
			Description:     strings.TrimSpace(req.Description),
			Tags:            models.StringList(catalog.NormalizeTags(req.Tags)),
			Category:        category,
			Options:         catalog.NormalizeTags(req.Options),
			BasePrice:       *req.BasePrice,
			ImagesURL:       req.ImagesURL,
			TopImageIndex:   req.TopImageIndex,
			HoverImageIndex: req.HoverImageIndex,
			Slug:            slug,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if product.ImagesURL == nil {
			product.ImagesURL = []string{}
		}

		variants := make([]models.ProductVariant, 0, len(req.Variants))
		for _, in := range req.Variants {
			v, err := in.Variant(product, now)
			if err != nil {
				respondError(c, log, route, err)
				return
			}
			variants = append(variants, v)
		}

		err = database.WithTransaction(ctx, db, func(ctx context.Context) error {
			if _, err := db.Collection(database.ProductsCollection).InsertOne(ctx, product); err != nil {
				return err
			}
			if len(variants) == 0 {
				return nil
			}
			docs := make([]interface{}, len(variants))
			for i := range variants {
				docs[i] = variants[i]
			}
			_, err := db.Collection(database.VariantsCollection).InsertMany(ctx, docs)
			return err
		})
		if isDuplicateKey(err) {
			respondError(c, log, route, errSlugTaken)
			return
		}
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		log.Info("catalog: product created", logger.String("productId", product.ID.Hex()), logger.Int("variants", len(variants)))
		c.JSON(http.StatusCreated, productDetail{
			Product:    product,
			Variants:   variants,
			TopImage:   product.TopImage(),
			HoverImage: product.HoverImage(),
		})
	}
}

func UpdateProduct(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /products/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "product id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		var req productUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		current, err := catalog.FindProduct(ctx, db, bson.M{"_id": id})
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if current == nil {
			respondError(c, log, route, errProductNotFound)
			return
		}

		set := bson.M{}
		unset := bson.M{}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				respondError(c, log, route, apperr.BadRequest("title is required"))
				return
			}
			if title != current.Title {
				slug, err := catalog.UniqueSlug(ctx, title, productSlugExists(db, id))
				if err != nil {
					respondError(c, log, route, err)
					return
				}
				set["slug"] = slug
			}
			set["title"] = title
		}
		if req.Description != nil {
			set["description"] = strings.TrimSpace(*req.Description)
		}
		if req.Tags != nil {
			set["tags"] = catalog.NormalizeTags(*req.Tags)
		}
		if req.Options != nil {
			set["options"] = catalog.NormalizeTags(*req.Options)
		}
		if req.Category != nil {
			category, err := resolveCategory(ctx, db, *req.Category)
			if err != nil {
				respondError(c, log, route, err)
				return
			}
			if category == nil {
				unset["category"] = ""
			} else {
				set["category"] = *category
			}
		}
		if req.BasePrice != nil {
			if *req.BasePrice < 0 {
				respondError(c, log, route, apperr.BadRequest("basePrice cannot be negative"))
				return
			}
			set["base_price"] = *req.BasePrice
		}

		images := current.ImagesURL
		top := current.TopImageIndex
		hover := current.HoverImageIndex
		if req.ImagesURL != nil {
			images = *req.ImagesURL
			set["images_url"] = images
		}
		if req.TopImageIndex != nil {
			top = *req.TopImageIndex
			set["top_image_index"] = top
		}
		if req.HoverImageIndex != nil {
			hover = req.HoverImageIndex
			set["hover_image_index"] = *hover
		}
		if err := catalog.CheckImageIndexes(images, top, hover); err != nil {
			respondError(c, log, route, err)
			return
		}

		if len(set) == 0 && len(unset) == 0 {
			respondError(c, log, route, apperr.BadRequest("no changes supplied"))
			return
		}
		set["updatedAt"] = time.Now()
		update := bson.M{"$set": set}
		if len(unset) > 0 {
			update["$unset"] = unset
		}

		var updated models.Product
		err = db.Collection(database.ProductsCollection).FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondError(c, log, route, errProductNotFound)
			return
		}
		if isDuplicateKey(err) {
			respondError(c, log, route, errSlugTaken)
			return
		}
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func DeleteProduct(db *mongo.Database, uploads Uploads, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /products/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "product id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		var removed models.Product
		err = database.WithTransaction(ctx, db, func(ctx context.Context) error {
			if err := db.Collection(database.ProductsCollection).FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&removed); err != nil {
				return err
			}
			_, err := db.Collection(database.VariantsCollection).DeleteMany(ctx, bson.M{"productId": id})
			return err
		})
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondError(c, log, route, errProductNotFound)
			return
		}
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		for _, image := range removed.ImagesURL {
			if err := uploads.Delete(image); err != nil {
				log.Warn("catalog: image cleanup failed", logger.String("path", image), logger.Error(err))
			}
		}
		c.Status(http.StatusNoContent)
	}
}

/* =======================
   VARIANTS
======================= */

func AddVariants(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products/:id/variants"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "product id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		var req []catalog.VariantInput
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if len(req) == 0 {
			respondError(c, log, route, apperr.BadRequest("at least one variant is required"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		product, err := catalog.FindProduct(ctx, db, bson.M{"_id": id})
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if product == nil {
			respondError(c, log, route, errProductNotFound)
			return
		}

		now := time.Now()
		variants := make([]models.ProductVariant, 0, len(req))
		docs := make([]interface{}, 0, len(req))
		for _, in := range req {
			v, err := in.Variant(*product, now)
			if err != nil {
				respondError(c, log, route, err)
				return
			}
			variants = append(variants, v)
			docs = append(docs, v)
		}
		if _, err := db.Collection(database.VariantsCollection).InsertMany(ctx, docs); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"items": variants})
	}
}

func UpdateVariant(db *mongo.Database, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /variants/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "variant id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		var req variantUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{}
		if req.Options != nil {
			set["options"] = *req.Options
		}
		if req.SKU != nil {
			set["sku"] = strings.TrimSpace(*req.SKU)
		}
		if req.Price != nil {
			if *req.Price < 0 {
				respondError(c, log, route, apperr.BadRequest("price cannot be negative"))
				return
			}
			set["price"] = *req.Price
		}
		if req.Stock != nil {
			if *req.Stock < 0 {
				respondError(c, log, route, apperr.BadRequest("stock cannot be negative"))
				return
			}
			set["stock"] = *req.Stock
		}
		if len(set) == 0 {
			respondError(c, log, route, apperr.BadRequest("no changes supplied"))
			return
		}
		set["updatedAt"] = time.Now()

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var updated models.ProductVariant
		err = db.Collection(database.VariantsCollection).FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondError(c, log, route, errVariantNotFound)
			return
		}
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}
