// Package echo wires the account and auth services onto an Echo server. All
// domain decisions live in the services; this layer binds, validates, calls
// and maps error kinds to statuses.
package echo

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/accountd/domain"
	"go.pilab.hu/accountd/middleware"
	"go.pilab.hu/accountd/services"
)

// AccountAPI struct to hold dependencies.
type AccountAPI struct {
	auth   *services.AuthService
	users  *services.UserService
	tokens *services.TokenService
}

// NewAccountAPI initializes the account API.
func NewAccountAPI(
	auth *services.AuthService,
	users *services.UserService,
	tokens *services.TokenService,
) *AccountAPI {
	return &AccountAPI{
		auth:   auth,
		users:  users,
		tokens: tokens,
	}
}

// RegisterRoutes registers the auth and user routes.
func (a *AccountAPI) RegisterRoutes(e *echo.Echo) {
	authn := middleware.RequireAccessToken(a.tokens)

	auth := e.Group("/v1/auth")
	auth.POST("/register", a.Register)
	auth.POST("/login", a.Login)
	auth.POST("/logout", a.Logout)
	auth.POST("/refresh-tokens", a.RefreshTokens)
	auth.POST("/forgot-password", a.ForgotPassword)
	auth.POST("/reset-password", a.ResetPassword)
	auth.POST("/send-verification-email", a.SendVerificationEmail, authn)
	auth.POST("/verify-email", a.VerifyEmail)

	users := e.Group("/v1/users", authn)
	users.POST("", a.CreateUser)
	users.GET("", a.GetUsers)
	users.GET("/:id", a.GetUser)
	users.PATCH("/:id", a.UpdateUser)
	users.DELETE("/:id", a.DeleteUser)
}

// Register creates an account and logs it in, returning the user plus a token
// pair.
func (a *AccountAPI) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	user, err := a.users.CreateUser(ctx, services.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return respondError(c, err)
	}
	pair, err := a.tokens.GenerateAuthTokens(ctx, user)
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, http.StatusCreated, echo.Map{"user": user, "tokens": pair}, "user registered successfully")
}

// Login authenticates with email and password.
func (a *AccountAPI) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	user, pair, err := a.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, echo.Map{"user": user, "tokens": pair}, "user logged in successfully")
}

// Logout revokes the presented refresh token. The token is required; requests
// without one are rejected before any store call.
func (a *AccountAPI) Logout(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	if err := a.auth.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, nil, "user logged out successfully")
}

// RefreshTokens rotates a refresh token into a new pair.
func (a *AccountAPI) RefreshTokens(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	pair, err := a.auth.RefreshAuth(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, pair, "tokens refreshed successfully")
}

// ForgotPassword issues a reset token and queues the email.
func (a *AccountAPI) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	if err := a.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusCreated, nil, "reset password token generated")
}

// ResetPassword consumes a reset token from the query string and sets the new
// password.
func (a *AccountAPI) ResetPassword(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, apiError{Error: "token query parameter is required"})
	}

	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	if err := a.auth.ResetPassword(c.Request().Context(), token, req.Password); err != nil {
		return respondTokenFlowError(c, err)
	}
	return respond(c, http.StatusOK, nil, "password reset successfully")
}

// SendVerificationEmail issues a verify-email token for the authenticated
// user and queues the email.
func (a *AccountAPI) SendVerificationEmail(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := a.users.GetUserByID(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}

	if err := a.auth.SendVerificationEmail(ctx, user); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, nil, "verification mail sent")
}

// VerifyEmail consumes a verify-email token from the query string.
func (a *AccountAPI) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, apiError{Error: "token query parameter is required"})
	}

	if err := a.auth.VerifyEmail(c.Request().Context(), token); err != nil {
		return respondTokenFlowError(c, err)
	}
	return respond(c, http.StatusOK, nil, "email verified")
}

// CreateUser creates an account without logging it in. Admin surface.
func (a *AccountAPI) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	user, err := a.users.CreateUser(c.Request().Context(), services.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     domain.UserRole(req.Role),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusCreated, user, "user created")
}

// GetUsers lists accounts with optional name/role filter, sorting and paging.
func (a *AccountAPI) GetUsers(c echo.Context) error {
	query := domain.UserQuery{
		Name:   c.QueryParam("name"),
		Role:   domain.UserRole(c.QueryParam("role")),
		SortBy: c.QueryParam("sort_by"),
	}
	query.Page, _ = strconv.ParseInt(c.QueryParam("page"), 10, 64)
	query.Limit, _ = strconv.ParseInt(c.QueryParam("limit"), 10, 64)

	page, err := a.users.QueryUsers(c.Request().Context(), query)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, page, "user data fetched")
}

// GetUser fetches a single account.
func (a *AccountAPI) GetUser(c echo.Context) error {
	user, err := a.users.GetUserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, user, "user fetched")
}

// UpdateUser applies a partial update to an account.
func (a *AccountAPI) UpdateUser(c echo.Context) error {
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, err)
	}

	var role *domain.UserRole
	if req.Role != nil {
		r := domain.UserRole(*req.Role)
		role = &r
	}
	user, err := a.users.UpdateUser(c.Request().Context(), c.Param("id"), services.UpdateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     role,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, user, "user data updated")
}

// DeleteUser removes an account.
func (a *AccountAPI) DeleteUser(c echo.Context) error {
	if err := a.users.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, nil, "user deleted")
}
