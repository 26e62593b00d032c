package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type SignupMessage struct {
	Name       string `json:"name" example:"Pepe Rone" doc:"Display name."`
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Password   string `json:"password" example:"some_secret_word" doc:"Password"`
	Role       string `json:"role" example:"learner" doc:"Requested account role."`
	OnResponse func(resp *SignupResponse)
}

func (e SignupMessage) Type() string { return "auth.signup" }

// Validate enforces the account rules regardless of which transport the
// message arrived through.
func (e SignupMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.Length(2, 50)),
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Password, validation.Required, PasswordStrengthRule()),
	)
}

type SignupResponse struct {
	User *User
}

type SignupHandler struct {
	repo          RepositoryManager
	mailer        NotificationDispatcher
	activity      ActivitySink
	logger        Logger
	deterministic bool
}

// NewSignupHandler creates a handler with sane defaults.
func NewSignupHandler(repo RepositoryManager, mailer NotificationDispatcher) *SignupHandler {
	return &SignupHandler{
		repo:     repo,
		mailer:   mailer,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit signup events.
func (h *SignupHandler) WithActivitySink(sink ActivitySink) *SignupHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SignupHandler) WithLogger(logger Logger) *SignupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithDeterministicIDs derives user ids from the signup email instead of
// random UUIDs. Useful for fixtures and idempotent imports.
func (h *SignupHandler) WithDeterministicIDs() *SignupHandler {
	h.deterministic = true
	return h
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	resp := &SignupResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	role := UserRole(event.Role)
	if role == "" {
		role = RoleLearner
	}

	// admin is never assignable through signup
	if !IsAssignableAtSignup(role) {
		return goerrors.New("role is not allowed at signup", goerrors.CategoryValidation).
			WithTextCode("ROLE_NOT_ALLOWED").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"role": event.Role})
	}

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "signup payload is invalid").
			WithTextCode("SIGNUP_INVALID").
			WithCode(goerrors.CodeBadRequest)
	}

	challenge, err := NewChallenge()
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrEmailInUse
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user := &User{
			Name:         event.Name,
			Email:        event.Email,
			Role:         role,
			PasswordHash: hash,
			IsActive:     true,
		}
		user.SetVerificationChallenge(challenge.Digest, challenge.ExpiresAt)

		if h.deterministic {
			if id, err := hashid.NewUUID(user.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		resp.User = user
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	// delivery failure does not undo the account, only the pending
	// challenge, so the caller can retry through a resend or support path
	if err := h.mailer.SendVerification(ctx, resp.User, challenge.Token); err != nil {
		h.logger.Warn("signup verification email failed: %v", err)

		resp.User.ClearVerificationChallenge()
		if _, uerr := h.repo.Users().Update(ctx, resp.User, repository.UpdateByID(resp.User.ID.String())); uerr != nil {
			h.logger.Error("failed to clear verification challenge for %s: %v", resp.User.ID, uerr)
		}

		return goerrors.Wrap(err, ErrMailDeliveryFailed.Category, ErrMailDeliveryFailed.Message).
			WithTextCode(ErrMailDeliveryFailed.TextCode).
			WithMetadata(map[string]any{"user_id": resp.User.ID.String()})
	}

	h.recordActivity(ctx, resp.User)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *SignupHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventSignup,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID: user.ID.String(),
		Metadata: map[string]any{
			"role": string(user.Role),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during signup: %v", err)
	}
}
