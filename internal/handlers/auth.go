package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/otp"
	"storefront/internal/tokens"
	"storefront/internal/users"
)

var errInvalidCredentials = apperr.Unauthorized("invalid credentials").WithReason("INVALID_CREDENTIALS")

// Session bundles what the auth handlers need to issue and revoke tokens.
type Session struct {
	Users   users.Store
	Signer  *auth.Signer
	Tokens  *tokens.Manager
	Cookies auth.Cookies
	Metrics *metrics.Metrics
	Log     logger.Logger
}

type registerRequest struct {
	Name                string `json:"name" binding:"required"`
	Email               string `json:"email" binding:"required,email"`
	Phone               string `json:"phone" binding:"required"`
	Password            string `json:"password" binding:"required,min=6"`
	Phone2              string `json:"phone2"`
	Address             string `json:"address"`
	District            string `json:"district"`
	City                string `json:"city"`
	DeliverInstructions string `json:"deliverInstructions"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
}

type passwordChangeRequest struct {
	PreviousPassword string `json:"previousPassword" binding:"required"`
	NewPassword      string `json:"newPassword" binding:"required,min=6"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetConfirmRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

func userSummary(u *models.User) gin.H {
	return gin.H{
		"id":    u.ID.Hex(),
		"name":  u.Name,
		"email": u.Email,
		"phone": u.Phone,
		"role":  u.Role,
	}
}

// start issues an access token and a fresh refresh token for user and writes
// both cookies.
func (s Session) start(ctx context.Context, c *gin.Context, user *models.User) (string, error) {
	access, accessExp, err := s.Signer.Issue(user.ID, user.Role, user.Email)
	if err != nil {
		return "", err
	}
	issued, err := s.Tokens.CreateToken(ctx, user.ID)
	if err != nil {
		return "", err
	}
	s.Cookies.SetAccess(c.Writer, access, accessExp)
	s.Cookies.SetRefresh(c.Writer, issued.CookieValue, issued.ExpiresAt)
	return access, nil
}

/* =========================
   REGISTER / LOGIN
========================= */

func Register(s Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, s.Log, route)

		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		email := users.NormalizeEmail(req.Email)
		phone := strings.TrimSpace(req.Phone)
		exists, err := s.Users.Exists(ctx, email, phone)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		if exists {
			respondError(c, s.Log, route, users.ErrAlreadyExists)
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}

		user := users.New(req.Name, email, phone, hash, time.Now())
		user.Phone2 = strings.TrimSpace(req.Phone2)
		user.Address = strings.TrimSpace(req.Address)
		user.District = strings.TrimSpace(req.District)
		user.City = strings.TrimSpace(req.City)
		user.DeliverInstructions = strings.TrimSpace(req.DeliverInstructions)
		if err := s.Users.Insert(ctx, user); err != nil {
			respondError(c, s.Log, route, err)
			return
		}

		access, err := s.start(ctx, c, user)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}

		s.Log.Info("user registered", logger.String("area", "auth"), logger.String("userId", user.ID.Hex()))
		c.JSON(http.StatusCreated, gin.H{"accessToken": access, "user": userSummary(user)})
	}
}

func Login(s Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, s.Log, route)

		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		email := users.NormalizeEmail(req.Email)
		phone := strings.TrimSpace(req.Phone)
		if email == "" && phone == "" {
			respondError(c, s.Log, route, apperr.BadRequest("email or phone is required"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := s.Users.FindByLogin(ctx, email, phone)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			s.Log.Warn("login rejected", logger.String("area", "auth"), logger.String("email", email))
			respondError(c, s.Log, route, errInvalidCredentials)
			return
		}

		access, err := s.start(ctx, c, user)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"accessToken": access, "user": userSummary(user)})
	}
}

/* =========================
   REFRESH / LOGOUT
========================= */

func Refresh(s Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh"
		defer handlePanic(c, s.Log, route)

		raw, err := c.Cookie(auth.RefreshCookie)
		if err != nil || strings.TrimSpace(raw) == "" {
			respondError(c, s.Log, route, apperr.Unauthorized("missing refresh token").WithReason("REFRESH_TOKEN_MISSING"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		issued, err := s.Tokens.ValidateAndRotate(ctx, raw)
		if err != nil {
			s.Cookies.Clear(c.Writer)
			if errors.Is(err, tokens.ErrTokenReuseDetected) && s.Metrics != nil {
				s.Metrics.ReuseDetections.Inc()
			}
			respondError(c, s.Log, route, err)
			return
		}

		user, err := s.Users.FindByID(ctx, issued.UserID)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		if user == nil {
			_, _ = s.Tokens.RevokeAllForUser(ctx, issued.UserID)
			s.Cookies.Clear(c.Writer)
			respondError(c, s.Log, route, tokens.ErrTokenInvalid)
			return
		}

		access, accessExp, err := s.Signer.Issue(user.ID, user.Role, user.Email)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		if s.Metrics != nil {
			s.Metrics.TokenRotations.Inc()
		}
		s.Cookies.SetAccess(c.Writer, access, accessExp)
		s.Cookies.SetRefresh(c.Writer, issued.CookieValue, issued.ExpiresAt)
		c.JSON(http.StatusOK, gin.H{"accessToken": access, "user": userSummary(user)})
	}
}

func Logout(s Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /auth/logout"
		defer handlePanic(c, s.Log, route)

		if raw, err := c.Cookie(auth.RefreshCookie); err == nil && raw != "" {
			if err := s.Tokens.RevokeCookie(c.Request.Context(), raw); err != nil {
				respondError(c, s.Log, route, err)
				return
			}
		}
		s.Cookies.Clear(c.Writer)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func LogoutAll(s Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout-all"
		defer handlePanic(c, s.Log, route)

		p, _ := middleware.CurrentPrincipal(c)
		n, err := s.Tokens.RevokeAllForUser(c.Request.Context(), p.UserID)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		s.Cookies.Clear(c.Writer)
		c.JSON(http.StatusOK, gin.H{"message": "logged out from all sessions", "revoked": n})
	}
}

/* =========================
   PASSWORDS
========================= */

func ChangePassword(s Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/password-change"
		defer handlePanic(c, s.Log, route)

		var req passwordChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		p, _ := middleware.CurrentPrincipal(c)
		user, err := s.Users.FindByID(ctx, p.UserID)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		if user == nil {
			respondError(c, s.Log, route, users.ErrNotFound)
			return
		}
		if !auth.CheckPassword(user.PasswordHash, req.PreviousPassword) {
			respondError(c, s.Log, route, apperr.BadRequest("previous password is incorrect"))
			return
		}

		if err := s.setPassword(ctx, user.ID, req.NewPassword); err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		access, err := s.start(ctx, c, user)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password changed", "accessToken": access})
	}
}

// setPassword stores a new hash and signs out every session of the user.
func (s Session) setPassword(ctx context.Context, userID primitive.ObjectID, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.Users.SetPassword(ctx, userID, hash); err != nil {
		return err
	}
	_, err = s.Tokens.RevokeAllForUser(ctx, userID)
	return err
}

func RequestPasswordReset(s Session, codes *otp.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/password-reset-request"
		defer handlePanic(c, s.Log, route)

		var req resetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		email := users.NormalizeEmail(req.Email)
		user, err := s.Users.FindByLogin(ctx, email, "")
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		if user == nil {
			respondError(c, s.Log, route, users.ErrNotFound)
			return
		}
		if _, err := codes.Issue(ctx, email); err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "a verification code was sent to your email"})
	}
}

func ResetPassword(s Session, codes *otp.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/password-reset"
		defer handlePanic(c, s.Log, route)

		var req resetConfirmRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		email := users.NormalizeEmail(req.Email)
		user, err := s.Users.FindByLogin(ctx, email, "")
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		if user == nil {
			respondError(c, s.Log, route, users.ErrNotFound)
			return
		}
		if err := codes.Verify(ctx, email, req.OTP); err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		if err := s.setPassword(ctx, user.ID, req.NewPassword); err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		s.Cookies.Clear(c.Writer)
		s.Log.Info("password reset", logger.String("area", "auth"), logger.String("userId", user.ID.Hex()))
		c.JSON(http.StatusOK, gin.H{"message": "password updated, please sign in again"})
	}
}

func Me(s Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, s.Log, route)

		p, _ := middleware.CurrentPrincipal(c)
		user, err := s.Users.FindByID(c.Request.Context(), p.UserID)
		if err != nil {
			respondError(c, s.Log, route, err)
			return
		}
		if user == nil {
			respondError(c, s.Log, route, users.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
