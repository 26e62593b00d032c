package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/syntra/go-auth"
	"github.com/syntra/go-auth/activitymap"
	"github.com/syntra/go-auth/middleware/csrf"
	"github.com/syntra/go-auth/social"
	"github.com/syntra/go-auth/social/providers/github"
)

// Config is loaded from the environment. It doubles as the auth.Config
// implementation handed to the authenticator and middleware.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8572"`
	AppURL   string `env:"APP_URL" envDefault:"http://localhost:8572"`
	DSN      string `env:"DATABASE_DSN" envDefault:"file:authd.db?cache=shared&mode=rwc"`

	SigningKey            string   `env:"JWT_SIGNING_KEY,required"`
	PreviousSigningKey    string   `env:"JWT_PREVIOUS_SIGNING_KEY"`
	SigningMethod         string   `env:"JWT_SIGNING_METHOD" envDefault:"HS256"`
	ContextKey            string   `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	TokenExpiration       int      `env:"JWT_TTL_HOURS" envDefault:"168"`
	ExtendedTokenDuration int      `env:"JWT_EXTENDED_TTL_HOURS" envDefault:"720"`
	TokenLookup           string   `env:"AUTH_TOKEN_LOOKUP" envDefault:"header:Authorization,cookie:user"`
	AuthScheme            string   `env:"AUTH_SCHEME" envDefault:"Bearer"`
	Issuer                string   `env:"JWT_ISSUER" envDefault:"syntra-auth"`
	Audience              []string `env:"JWT_AUDIENCE" envDefault:"syntra"`
	RejectedRouteKey      string   `env:"AUTH_REJECTED_ROUTE_KEY" envDefault:"rejected_route"`
	RejectedRouteDefault  string   `env:"AUTH_REJECTED_ROUTE_DEFAULT" envDefault:"/"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@syntra.ai"`

	GithubClientID     string `env:"GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GithubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`

	CSRFEnabled bool `env:"CSRF_ENABLED" envDefault:"false"`
}

func (c Config) GetSigningKey() string           { return c.SigningKey }
func (c Config) GetSigningMethod() string        { return c.SigningMethod }
func (c Config) GetContextKey() string           { return c.ContextKey }
func (c Config) GetTokenExpiration() int         { return c.TokenExpiration }
func (c Config) GetExtendedTokenDuration() int   { return c.ExtendedTokenDuration }
func (c Config) GetTokenLookup() string          { return c.TokenLookup }
func (c Config) GetAuthScheme() string           { return c.AuthScheme }
func (c Config) GetIssuer() string               { return c.Issuer }
func (c Config) GetAudience() []string           { return c.Audience }
func (c Config) GetRejectedRouteKey() string     { return c.RejectedRouteKey }
func (c Config) GetRejectedRouteDefault() string { return c.RejectedRouteDefault }

func main() {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := auth.DefaultLogger()

	db, err := openDatabase(cfg.DSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := runMigrations(ctx, db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		log.Fatalf("repository: %v", err)
	}

	mailer := buildMailer(cfg, logger)

	provider := auth.NewUserProvider(repo.Users()).WithLogger(logger)

	authenticator := auth.NewAuthenticator(provider, cfg).
		WithLogger(logger).
		WithActivitySink(logActivitySink(logger))

	// sessions signed with the rotated-out key stay valid until they expire
	if cfg.PreviousSigningKey != "" {
		retired := auth.NewTokenService(
			[]byte(cfg.PreviousSigningKey),
			cfg.TokenExpiration,
			cfg.Issuer,
			cfg.Audience,
			logger,
		)
		authenticator.WithTokenValidator(
			auth.NewRotationValidator(authenticator.TokenService(), retired),
		)
	}

	httpAuth, err := auth.NewHTTPAuthenticator(authenticator, cfg)
	if err != nil {
		log.Fatalf("http auth: %v", err)
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	r := srv.Router()

	if cfg.CSRFEnabled {
		key := sha256.Sum256([]byte("csrf:" + cfg.SigningKey))
		r.Use(csrf.New(csrf.Config{
			SecureKey:   key[:],
			TokenLookup: "header:" + csrf.DefaultHeaderName,
		}))
		csrf.RegisterRoutes(r)
	}

	r.Get("/health", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]string{"status": "ok"})
	})

	controller := auth.RegisterAuthRoutes(r,
		auth.WithControllerRepository(repo),
		auth.WithControllerMailer(mailer),
		auth.WithControllerAuthenticator(httpAuth),
		auth.WithControllerProfiles(provider),
		auth.WithControllerLogger(logger),
		auth.WithControllerContextKey(cfg.ContextKey),
	)

	protected := httpAuth.ProtectedRoute(cfg, httpAuth.MakeClientRouteAuthErrorHandler(false))
	r.Get(controller.Routes.Me, controller.MeGet, protected).SetName("auth.me.get")

	if cfg.GithubClientID != "" {
		registerSocialRoutes(r, cfg, repo, authenticator, logger)
	} else {
		logger.Warn("GITHUB_CLIENT_ID not set, social login disabled")
	}

	logger.Info("authd listening on %s", cfg.HTTPAddr)
	srv.Serve(cfg.HTTPAddr)

	waitExitSignal()
}

func openDatabase(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// runMigrations applies the embedded SQL migrations in lexical order.
func runMigrations(ctx context.Context, db *bun.DB) error {
	root := auth.GetMigrationsFS()

	var files []string
	err := fs.WalkDir(root, "data/sql/migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".up.sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		contents, err := fs.ReadFile(root, file)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply %s: %w", file, err)
		}
	}

	return nil
}

func buildMailer(cfg Config, logger auth.Logger) auth.NotificationDispatcher {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, logging account emails instead of sending")
		return auth.NewLogMailer(cfg.AppURL, logger)
	}

	mailer, err := auth.NewMailer(auth.MailerOptions{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		AppURL:   cfg.AppURL,
	})
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}
	return mailer
}

func registerSocialRoutes[T any](r router.Router[T], cfg Config, repo auth.RepositoryManager, authenticator *auth.Auther, logger auth.Logger) {
	callbackURL := cfg.GithubCallbackURL
	if callbackURL == "" {
		callbackURL = cfg.AppURL + "/auth/social/github/callback"
	}

	ghProvider := github.New(github.Config{
		ClientID:     cfg.GithubClientID,
		ClientSecret: cfg.GithubClientSecret,
		CallbackURL:  callbackURL,
	})

	encKey := sha256.Sum256([]byte("state-enc:" + cfg.SigningKey))
	macKey := sha256.Sum256([]byte("state-mac:" + cfg.SigningKey))

	socialAuth := social.NewSocialAuthenticator(
		repo,
		authenticator.TokenService(),
		social.SocialAuthConfig{
			BaseURL:            cfg.AppURL,
			DefaultRedirectURL: cfg.AppURL,
			StateEncryptionKey: encKey[:],
			StateHMACKey:       macKey[:],
		},
		social.WithProvider(ghProvider),
		social.WithActivitySink(logActivitySink(logger)),
	)

	controller := social.NewHTTPController(socialAuth, social.HTTPConfig{
		CookieName:      cfg.ContextKey,
		CookieHTTPOnly:  true,
		SuccessRedirect: cfg.AppURL,
		ErrorRedirect:   cfg.AppURL + "/login?error=auth_failed",
	})

	controller.RegisterRoutes(r.Group("/auth/social"))
}

func logActivitySink(logger auth.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		record := activitymap.Normalize(event)
		logger.Info("activity %s actor=%s object=%s", record.Verb, record.ActorID, record.ObjectID)
		return nil
	})
}

func waitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
