package auth

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// ProfileProvider resolves the full account record behind a session
type ProfileProvider interface {
	GetProfile(ctx context.Context, identifier string) (*User, error)
}

func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	cookie := c.Locals(key)
	if cookie == nil {
		return nil, ErrUnableToFindSession
	}

	user, ok := cookie.(*jwt.Token)
	if user == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	claims, ok := user.Claims.(jwt.MapClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToMapClaims
	}

	return sessionFromClaims(claims)
}

func sessionFromClaims(claims jwt.MapClaims) (*SessionObject, error) {
	session := &SessionObject{
		Data: map[string]any{},
	}

	if sub, err := claims.GetSubject(); err == nil {
		session.UserID = sub
	}

	if uid, ok := claims["uid"].(string); ok && uid != "" {
		session.UserID = uid
	}

	if session.UserID == "" {
		return nil, ErrUnableToMapClaims
	}

	if role, ok := claims["role"].(string); ok {
		session.Data["role"] = role
	}

	if iss, err := claims.GetIssuer(); err == nil {
		session.Issuer = iss
	}

	if aud, err := claims.GetAudience(); err == nil {
		session.Audience = aud
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		session.IssuedAt = &iat.Time
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpirationDate = &exp.Time
	}

	return session, nil
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Signup, controller.SignupPost).
		SetName("auth.signup.post")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login.post")

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout.post")

	app.Get(controller.Routes.VerifyEmail, controller.VerifyEmailGet).
		SetName("auth.verify-email.get")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("auth.forgot-password.post")

	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("auth.reset-password.post")

	return controller
}

type AuthControllerRoutes struct {
	Signup         string
	Login          string
	Logout         string
	VerifyEmail    string
	ForgotPassword string
	ResetPassword  string
	Me             string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Mailer       NotificationDispatcher
	Profiles     ProfileProvider
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	ContextKey   string
	ErrorHandler func(c router.Context, err error) error
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: respondJSONError,
		ContextKey:   "user",
		Routes: &AuthControllerRoutes{
			Signup:         "/auth/signup",
			Login:          "/auth/login",
			Logout:         "/auth/logout",
			VerifyEmail:    "/auth/verify-email",
			ForgotPassword: "/auth/forgot-password",
			ResetPassword:  "/auth/reset-password",
			Me:             "/auth/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Mailer == nil {
		panic("Missing NotificationDispatcher in auth controller...")
	}

	return c
}

func WithControllerRepository(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerMailer(mailer NotificationDispatcher) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = mailer
		return c
	}
}

func WithControllerAuthenticator(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerProfiles(profiles ProfileProvider) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Profiles = profiles
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerContextKey(key string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// SignupRequest is the account creation payload
type SignupRequest struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	Role            string `form:"role" json:"role"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100), PasswordStrengthRule()),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) SignupPost(ctx router.Context) error {
	payload := new(SignupRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload: %v", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, ErrUnableToParseData.Category, ErrUnableToParseData.Message).
			WithTextCode(ErrUnableToParseData.TextCode))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("signup validate payload: %v", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message":    "validation failed",
				"validation": FormatValidationErrorToMap(err),
			},
		})
	}

	if a.Debug {
		a.Logger.Debug("signup payload: %s", print.MaybePrettyJSON(payload))
	}

	var res *SignupResponse

	req := SignupMessage{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
		OnResponse: func(resp *SignupResponse) {
			res = resp
		},
	}

	signup := NewSignupHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := signup.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("signup execute: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"user":    res.User,
		"message": "Account created. Check your email to verify your address.",
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports if the session should outlive the default window
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, ErrUnableToParseData.Category, ErrUnableToParseData.Message).
			WithTextCode(ErrUnableToParseData.TextCode))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message":    "validation failed",
				"validation": FormatValidationErrorToMap(err),
			},
		})
	}

	token, err := a.Auther.Login(ctx, payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	body := map[string]any{
		"token": token,
	}

	if a.Profiles != nil {
		if user, err := a.Profiles.GetProfile(ctx.Context(), payload.Identifier); err == nil {
			body["user"] = user
		} else {
			a.Logger.Warn("login profile lookup: %v", err)
		}
	}

	return ctx.JSON(http.StatusOK, body)
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Logged out",
	})
}

func (a *AuthController) VerifyEmailGet(ctx router.Context) error {
	token := ctx.Query("token", "")
	if token == "" {
		return a.ErrorHandler(ctx, ErrInvalidOrExpiredToken)
	}

	var res *VerifyEmailResponse

	req := VerifyEmailMessage{
		Token: token,
		OnResponse: func(resp *VerifyEmailResponse) {
			res = resp
		},
	}

	verify := NewVerifyEmailHandler(a.Repo).WithLogger(a.Logger)
	if err := verify.Execute(ctx.Context(), req); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	// verification doubles as login, the caller leaves with a session
	sessionToken, err := a.Auther.IssueSession(ctx, NewIdentityFromUser(res.User))
	if err != nil {
		a.Logger.Error("verify email issue session: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"token":   sessionToken,
		"user":    res.User,
		"message": "Email verified",
	})
}

// ForgotPasswordRequest holds values for a password reset request
type ForgotPasswordRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("forgot password parse payload: %v", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, ErrUnableToParseData.Category, ErrUnableToParseData.Message).
			WithTextCode(ErrUnableToParseData.TextCode))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message":    "validation failed",
				"validation": FormatValidationErrorToMap(err),
			},
		})
	}

	req := InitializePasswordResetMessage{
		Email: payload.Email,
	}

	initReset := NewInitializePasswordResetHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := initReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("forgot password execute: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	// same body whether or not the address has an account
	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "If that email is registered, a reset link has been sent.",
	})
}

// ResetPasswordRequest finalizes a password reset
type ResetPasswordRequest struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100), PasswordStrengthRule()),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("reset password parse payload: %v", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, ErrUnableToParseData.Category, ErrUnableToParseData.Message).
			WithTextCode(ErrUnableToParseData.TextCode))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message":    "validation failed",
				"validation": FormatValidationErrorToMap(err),
			},
		})
	}

	var res *FinalizePasswordResetResponse

	req := FinalizePasswordResetMessage{
		Token:           payload.Token,
		Password:        payload.Password,
		PasswordConfirm: payload.ConfirmPassword,
		OnResponse: func(resp *FinalizePasswordResetResponse) {
			res = resp
		},
	}

	finalize := NewFinalizePasswordResetHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := finalize.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("reset password execute: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	// a successful reset proves control of the mailbox, log the caller in
	sessionToken, err := a.Auther.IssueSession(ctx, NewIdentityFromUser(res.User))
	if err != nil {
		a.Logger.Error("reset password issue session: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"token":   sessionToken,
		"user":    res.User,
		"message": "Password has been reset",
	})
}

// MeGet returns the profile behind the current session. Register it behind
// ProtectedRoute.
func (a *AuthController) MeGet(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.ContextKey)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if a.Profiles == nil {
		return a.ErrorHandler(ctx, errors.New("profile provider not configured", errors.CategoryInternal))
	}

	user, err := a.Profiles.GetProfile(ctx.Context(), session.GetUserID())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"user": user,
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors to field messages
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if vErrs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range vErrs {
			out[field] = fieldErr.Error()
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

func respondJSONError(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	return c.JSON(httpStatusFor(richErr), errorBody(richErr))
}

func errorBody(richErr *errors.Error) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
			"category":  string(richErr.Category),
		},
	}
}

func httpStatusFor(richErr *errors.Error) int {
	if richErr.Code > 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
