package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/apperr"
	"storefront/internal/database"
	"storefront/internal/logger"
)

func handlePanic(c *gin.Context, log logger.Logger, route string) {
	if r := recover(); r != nil {
		log.Error("panic recovered", logger.String("route", route), logger.Any("panic", r))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": string(apperr.CodeInternal)})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	return database.Ping(ctx, db)
}

// respondError writes err as {"error", "code", "details"}. Anything that is
// not an *apperr.Error is logged and hidden behind a 500.
func respondError(c *gin.Context, log logger.Logger, route string, err error) {
	e := apperr.From(err)
	status := apperr.HTTPStatus(e)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.String("route", route), logger.Error(err))
	}

	code := string(e.Code)
	if e.Reason != "" {
		code = e.Reason
	}
	body := gin.H{"error": e.Message, "code": code}
	if e.Details != nil {
		body["details"] = e.Details
	}
	c.AbortWithStatusJSON(status, body)
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"code":    string(apperr.CodeBadRequest),
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body", "code": string(apperr.CodeBadRequest), "details": err.Error()})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func parseObjectID(value, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(value))
	if err != nil {
		return primitive.NilObjectID, apperr.BadRequest("invalid %s", name)
	}
	return id, nil
}

func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
