package course

import (
	"embed"

	coredatabase "github.com/m3rciful/coursebot/core/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() coredatabase.Migrations {
	return coredatabase.Migrations{FS: migrationsFS, Dir: "migrations"}
}
