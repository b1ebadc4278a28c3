package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/cart"
	"storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/users"
)

type cartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	VariantID string `json:"variantId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func GetUser(store users.Store, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /users/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "user id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		p, _ := middleware.CurrentPrincipal(c)
		if !middleware.CanManageUser(p, id) {
			respondError(c, log, route, apperr.Forbidden("forbidden"))
			return
		}

		user, err := store.FindByID(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		if user == nil {
			respondError(c, log, route, users.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func UpdateUser(store users.Store, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /users/:id"
		defer handlePanic(c, log, route)

		id, err := parseObjectID(c.Param("id"), "user id")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		p, _ := middleware.CurrentPrincipal(c)
		if !middleware.CanManageUser(p, id) {
			respondError(c, log, route, apperr.Forbidden("forbidden"))
			return
		}

		var req users.ProfileUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		set, err := req.Set(time.Now())
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := store.Update(ctx, id, set)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

/* =========================
   CART
========================= */

func GetCart(carts *cart.Service, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /users/cart"
		defer handlePanic(c, log, route)

		p, _ := middleware.CurrentPrincipal(c)
		items, err := carts.Get(c.Request.Context(), p.UserID)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func AddCartItem(carts *cart.Service, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /users/cart"
		defer handlePanic(c, log, route)

		var req cartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := parseObjectID(req.ProductID, "productId")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		variantID, err := parseObjectID(req.VariantID, "variantId")
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		p, _ := middleware.CurrentPrincipal(c)
		items, err := carts.Add(c.Request.Context(), p.UserID, productID, variantID, req.Quantity)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func UpdateCartItem(carts *cart.Service, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /users/cart/:variantId"
		defer handlePanic(c, log, route)

		variantID, err := parseObjectID(c.Param("variantId"), "variantId")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		var req cartQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		p, _ := middleware.CurrentPrincipal(c)
		items, err := carts.SetQuantity(c.Request.Context(), p.UserID, variantID, *req.Quantity)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func RemoveCartItem(carts *cart.Service, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /users/cart/:variantId"
		defer handlePanic(c, log, route)

		variantID, err := parseObjectID(c.Param("variantId"), "variantId")
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		p, _ := middleware.CurrentPrincipal(c)
		items, err := carts.Remove(c.Request.Context(), p.UserID, variantID)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func ClearCart(carts *cart.Service, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /users/cart"
		defer handlePanic(c, log, route)

		p, _ := middleware.CurrentPrincipal(c)
		if err := carts.Clear(c.Request.Context(), p.UserID); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
