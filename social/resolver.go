package social

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	auth "github.com/syntra/go-auth"
	"github.com/uptrace/bun"
)

// PlaceholderEmailSuffix terminates synthetic emails minted for provider
// profiles that expose no address. Accounts carrying one are never treated
// as verified.
const PlaceholderEmailSuffix = ".noemail"

// Resolution describes how a profile was matched to a local account.
type Resolution string

const (
	// ResolutionExisting means the provider account id already belonged to a user
	ResolutionExisting Resolution = "existing"
	// ResolutionLinked means the profile was attached to a user matched by email
	ResolutionLinked Resolution = "linked"
	// ResolutionCreated means a new user was provisioned for the profile
	ResolutionCreated Resolution = "created"
)

// ResolveResult is the outcome of mapping a provider profile to a user.
type ResolveResult struct {
	User       *auth.User
	Resolution Resolution
}

// UserResolver maps a provider profile to a local user account.
type UserResolver interface {
	ResolveUser(ctx context.Context, profile *SocialProfile) (*ResolveResult, error)
}

// RepositoryUserResolver resolves profiles against the users table.
//
// Resolution order: provider account id, then email, then a fresh account.
// A provider id that already matches a user can never produce a second
// account, regardless of what the profile's email says.
type RepositoryUserResolver struct {
	repo        auth.RepositoryManager
	defaultRole auth.UserRole
	logger      auth.Logger
}

// NewUserResolver creates a resolver backed by the given repository manager.
func NewUserResolver(repo auth.RepositoryManager) *RepositoryUserResolver {
	return &RepositoryUserResolver{
		repo:        repo,
		defaultRole: auth.RoleLearner,
		logger:      auth.DefaultLogger(),
	}
}

// WithLogger sets the logger.
func (r *RepositoryUserResolver) WithLogger(logger auth.Logger) *RepositoryUserResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithDefaultRole sets the role assigned to accounts created by OAuth signups.
func (r *RepositoryUserResolver) WithDefaultRole(role auth.UserRole) *RepositoryUserResolver {
	if auth.IsValidRole(role) {
		r.defaultRole = role
	}
	return r
}

// ResolveUser runs the full resolution inside a single transaction.
func (r *RepositoryUserResolver) ResolveUser(ctx context.Context, profile *SocialProfile) (*ResolveResult, error) {
	if profile == nil || profile.ProviderUserID == "" {
		return nil, errors.New("profile is missing a provider user id", errors.CategoryBadInput)
	}

	var result *ResolveResult
	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := r.resolveTx(ctx, tx, profile)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *RepositoryUserResolver) resolveTx(ctx context.Context, tx bun.Tx, profile *SocialProfile) (*ResolveResult, error) {
	users := r.repo.Users()

	user, err := users.GetByGithubIDTx(ctx, tx, profile.ProviderUserID)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up provider account")
	}
	if user != nil {
		r.refreshProfile(user, profile)
		if profile.Email != "" && profile.EmailVerified && !user.EmailVerified {
			// the provider now discloses a confirmed address for an account
			// that may have been provisioned with a placeholder
			user.EmailVerified = true
		}
		if _, err := users.UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to refresh linked account")
		}
		return &ResolveResult{User: user, Resolution: ResolutionExisting}, nil
	}

	email := auth.NormalizeEmail(profile.Email)
	if email != "" {
		user, err = users.GetByEmailTx(ctx, tx, email)
		if err != nil && !repository.IsRecordNotFound(err) {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up account by email")
		}
	} else {
		// placeholder addresses never participate in email matching: a
		// reclaimed provider username must not inherit a stale account
		email = placeholderEmail(profile)
	}
	if user != nil {
		user.GithubID = profile.ProviderUserID
		r.refreshProfile(user, profile)
		if profile.EmailVerified && !user.EmailVerified {
			user.EmailVerified = true
		}
		if _, err := users.UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to link provider account")
		}
		r.logger.Info("linked %s account to existing user %s", profile.Provider, user.ID)
		return &ResolveResult{User: user, Resolution: ResolutionLinked}, nil
	}

	user = &auth.User{
		Name:      profile.DisplayName(),
		Email:     email,
		GithubID:  profile.ProviderUserID,
		AvatarURL: profile.AvatarURL,
		Role:      r.defaultRole,
		IsActive:  true,
		// Placeholder addresses are unreachable, so they can never count
		// as verified.
		EmailVerified: profile.Email != "" && profile.EmailVerified,
	}

	created, err := users.CreateTx(ctx, tx, user)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create account for provider profile")
	}

	r.logger.Info("provisioned user %s from %s profile", created.ID, profile.Provider)
	return &ResolveResult{User: created, Resolution: ResolutionCreated}, nil
}

// refreshProfile copies mutable profile attributes onto the account. The
// avatar tracks the provider; the display name is only filled when the
// account has none, it never clobbers a name the user chose.
func (r *RepositoryUserResolver) refreshProfile(user *auth.User, profile *SocialProfile) {
	if profile.AvatarURL != "" {
		user.AvatarURL = profile.AvatarURL
	}
	if user.Name == "" {
		user.Name = profile.DisplayName()
	}
}

func placeholderEmail(profile *SocialProfile) string {
	local := strings.ToLower(strings.TrimSpace(profile.Username))
	if local == "" {
		local = profile.ProviderUserID
	}
	return fmt.Sprintf("%s@%s%s", local, profile.Provider, PlaceholderEmailSuffix)
}
