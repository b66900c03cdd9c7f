// Package migrations содержит схемы хранилищ, встроенные в бинарник.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
