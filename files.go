package auth

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

//go:embed data/templates/mail
var mailTemplatesFS embed.FS

// GetMailTemplatesFS returns the email templates for this package
func GetMailTemplatesFS() embed.FS {
	return mailTemplatesFS
}
