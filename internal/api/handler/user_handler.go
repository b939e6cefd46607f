package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nexthire/nexthire-api/internal/api/metrics"
	"github.com/nexthire/nexthire-api/internal/api/middleware"
	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/ports"
)

type UserHandler struct {
	authService ports.AuthService
}

func NewUserHandler(authService ports.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

type registerRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,password"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=32"`
}

type loginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	CaptchaToken string `json:"captchaToken"`
}

type verifyRequest struct {
	Email            string `json:"email" validate:"required,email"`
	VerificationCode string `json:"verificationCode" validate:"required"`
}

type registerResponse struct {
	User    *domain.User `json:"user"`
	Message string       `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type verifyResponse struct {
	Message string         `json:"message"`
	Token   string         `json:"token"`
	UserID  string         `json:"userId"`
	User    domain.Profile `json:"user"`
}

type profileResponse struct {
	User *domain.User `json:"user"`
}

// authResult is the metric label for an auth outcome.
func authResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrTooManyLoginAttempts), errors.Is(err, domain.ErrTooManyCodeAttempts):
		return "rate_limited"
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrInvalidCode):
		return "invalid"
	case errors.Is(err, domain.ErrCaptchaRequired), errors.Is(err, domain.ErrCaptchaInvalid):
		return "captcha"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUserExists), errors.Is(err, domain.ErrChatNotLinked):
		return "rejected"
	default:
		return "error"
	}
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}

// Register creates a new user account. No session is started.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /users/register [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.AuthRequestsTotal.WithLabelValues("register", "rejected").Inc()
		return err
	}

	user, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	metrics.AuthRequestsTotal.WithLabelValues("register", authResult(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, registerResponse{User: user, Message: "User registered successfully"})
}

// Login checks the password and sends a verification code to the user's
// linked Telegram chat.
//
// @Summary      Login (step 1)
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /users/login [post]
func (h *UserHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.AuthRequestsTotal.WithLabelValues("login", "rejected").Inc()
		return err
	}

	err := h.authService.Login(c.Request().Context(), ports.LoginInput{
		Email:        req.Email,
		Password:     req.Password,
		CaptchaToken: req.CaptchaToken,
		Client:       middleware.Client(c),
	})
	metrics.AuthRequestsTotal.WithLabelValues("login", authResult(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Verification code sent to your Telegram"})
}

// VerifyCode completes the login with the one-time code and returns a JWT.
//
// @Summary      Login (step 2)
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      verifyRequest  true  "Email and verification code"
// @Success      200   {object}  verifyResponse
// @Failure      400   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /users/login-validation [post]
func (h *UserHandler) VerifyCode(c echo.Context) error {
	var req verifyRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.AuthRequestsTotal.WithLabelValues("verify", "rejected").Inc()
		return err
	}

	session, err := h.authService.VerifyCode(c.Request().Context(), ports.VerifyInput{
		Email:            req.Email,
		VerificationCode: req.VerificationCode,
		Client:           middleware.Client(c),
	})
	metrics.AuthRequestsTotal.WithLabelValues("verify", authResult(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, verifyResponse{
		Message: "Login successful",
		Token:   session.Token,
		UserID:  session.User.ID,
		User:    session.User.Profile(),
	})
}

// Profile returns a user's profile. Owner or master only.
//
// @Summary      Get a user profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User ID"
// @Success      200     {object}  profileResponse
// @Failure      401     {object}  map[string]string
// @Failure      403     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Router       /users/{userId}/profile [get]
func (h *UserHandler) Profile(c echo.Context) error {
	if _, err := ctxUser(c); err != nil {
		return err
	}

	user, err := h.authService.Profile(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{User: user})
}
