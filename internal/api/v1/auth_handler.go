package v1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gymmaster/internal/api/middleware"
	"gymmaster/internal/api/response"
	"gymmaster/internal/api/sanitize"
	"gymmaster/internal/model"
	"gymmaster/internal/service"
)

const (
	accessTokenCookieName  = "access_token"
	refreshTokenCookieName = "refresh_token"
)

type AuthHandler struct {
	authService *service.AuthService
	refreshTTL  time.Duration
}

type registerRequest struct {
	Email            string  `json:"email" binding:"required"`
	Password         string  `json:"password" binding:"required"`
	FirstName        string  `json:"first_name" binding:"required"`
	LastName         string  `json:"last_name" binding:"required"`
	Phone            *string `json:"phone"`
	DateOfBirth      *string `json:"date_of_birth"`
	EmergencyContact *string `json:"emergency_contact"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type otpRequest struct {
	Email   string `json:"email" binding:"required"`
	Purpose string `json:"purpose"`
}

type otpVerifyRequest struct {
	Email   string `json:"email" binding:"required"`
	OTPCode string `json:"otp_code" binding:"required"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	OTPCode     string `json:"otp_code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type authResponse struct {
	User *model.User `json:"user"`
	service.TokenPair
}

func NewAuthHandler(authService *service.AuthService, refreshTTL time.Duration) *AuthHandler {
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthHandler{authService: authService, refreshTTL: refreshTTL}
}

func RegisterAuthRoutes(group *gin.RouterGroup, authService *service.AuthService, refreshTTL time.Duration, opts RouteOptions) {
	if authService == nil {
		return
	}

	handler := NewAuthHandler(authService, refreshTTL)
	loginLimit := opts.LoginPerMinute
	auth := group.Group("/auth")

	auth.POST("/register",
		middleware.RateLimit(opts.RateStore, "ip", loginLimit, time.Minute),
		opts.auditAs("Member", model.AuditActionRegister),
		handler.Register,
	)
	auth.POST("/login",
		middleware.RateLimit(opts.RateStore, "ip", loginLimit*2, time.Minute),
		middleware.RateLimitByJSONField(opts.RateStore, "email", loginLimit, time.Minute),
		opts.auditAs("User", model.AuditActionLogin),
		handler.Login,
	)
	auth.POST("/refresh", handler.Refresh)
	auth.POST("/logout", opts.auditAs("User", model.AuditActionLogout), handler.Logout)
	auth.POST("/otp/request",
		middleware.RateLimitByJSONField(opts.RateStore, "email", loginLimit, time.Minute),
		handler.RequestOTP,
	)
	auth.POST("/otp/verify",
		middleware.RateLimitByJSONField(opts.RateStore, "email", loginLimit, time.Minute),
		opts.audit("User"),
		handler.VerifyOTP,
	)
	auth.POST("/password/reset",
		middleware.RateLimitByJSONField(opts.RateStore, "email", loginLimit, time.Minute),
		opts.auditAs("User", model.AuditActionUpdate),
		handler.ResetPassword,
	)
	auth.PUT("/password", opts.auth(), opts.audit("User"), handler.ChangePassword)
}

// Register creates a member account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	dob, err := parseOptionalDate(req.DateOfBirth)
	if err != nil {
		badRequest(c, "invalid date_of_birth")
		return
	}

	member, tokens, err := h.authService.Register(c.Request.Context(), service.CreateMemberRequest{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        sanitize.Plain(req.FirstName),
		LastName:         sanitize.Plain(req.LastName),
		Phone:            sanitize.PlainPtr(req.Phone),
		DateOfBirth:      dob,
		EmergencyContact: sanitize.PlainPtr(req.EmergencyContact),
	})
	if err != nil {
		handleAuthError(c, err)
		return
	}

	middleware.SetAuditActor(c, member.UserID)
	h.setTokenCookies(c, tokens)
	response.Created(c, gin.H{
		"id":            member.ID,
		"member":        member,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    tokens.ExpiresIn,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, tokens, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	middleware.SetAuditActor(c, user.ID)
	middleware.SetAuditEntityID(c, user.ID.String())
	h.setTokenCookies(c, tokens)
	response.Success(c, authResponse{User: user, TokenPair: tokens})
}

// Refresh reads the token from the body first, then the cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		token, _ = c.Cookie(refreshTokenCookieName)
	}
	if token == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "unauthorized")
		return
	}

	tokens, err := h.authService.RefreshToken(c.Request.Context(), token)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	h.setTokenCookies(c, tokens)
	response.Success(c, tokens)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		token, _ = c.Cookie(refreshTokenCookieName)
	}

	userID, err := h.authService.Logout(c.Request.Context(), token)
	if err != nil {
		internalError(c, err)
		return
	}
	if userID != nil {
		middleware.SetAuditActor(c, *userID)
		middleware.SetAuditEntityID(c, userID.String())
	}

	clearCookie(c, accessTokenCookieName)
	clearCookie(c, refreshTokenCookieName)
	response.Success(c, gin.H{"message": "logged out"})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		handleAuthError(c, err)
		return
	}

	middleware.SetAuditEntityID(c, userID.String())
	clearCookie(c, accessTokenCookieName)
	clearCookie(c, refreshTokenCookieName)
	response.Success(c, gin.H{"message": "password changed"})
}

// RequestOTP always answers the same way so addresses cannot be probed.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req otpRequest
	if !bindJSON(c, &req) {
		return
	}

	purpose := model.OTPPurpose(strings.ToUpper(strings.TrimSpace(req.Purpose)))
	if purpose == "" {
		purpose = model.OTPPurposeEmailVerification
	}

	if err := h.authService.RequestOTP(c.Request.Context(), req.Email, purpose); err != nil {
		handleAuthError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "if the address is registered a code has been sent"})
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req otpVerifyRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), req.Email, req.OTPCode); err != nil {
		handleAuthError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "email verified"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Email, req.OTPCode, req.NewPassword); err != nil {
		handleAuthError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "password reset"})
}

func (h *AuthHandler) setTokenCookies(c *gin.Context, tokens service.TokenPair) {
	setSecureCookie(c, accessTokenCookieName, tokens.AccessToken, int(tokens.ExpiresIn))
	setSecureCookie(c, refreshTokenCookieName, tokens.RefreshToken, int(h.refreshTTL.Seconds()))
}

func handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrPasswordWrong, "email or password incorrect")
	case errors.Is(err, service.ErrUserInactive):
		response.Fail(c, http.StatusForbidden, response.ErrUserInactive, "account is inactive")
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrUserNotFound, "user not found")
	case errors.Is(err, service.ErrRefreshTokenExpired):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenExpired, "refresh token expired")
	case errors.Is(err, service.ErrRefreshTokenInvalid):
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "invalid refresh token")
	case errors.Is(err, service.ErrInvalidOTP):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidOTP, err.Error())
	case errors.Is(err, service.ErrEmailInUse):
		response.Fail(c, http.StatusConflict, response.ErrEmailInUse, err.Error())
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err.Error())
	default:
		internalError(c, err)
	}
}

func setSecureCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", "", true, true)
}

func clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, "", -1, "/", "", true, true)
}
