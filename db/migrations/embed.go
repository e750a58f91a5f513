// Package dbmigrations exposes embedded SQL migrations for shimmer binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into shimmer binaries.
//
//go:embed *.sql
var Files embed.FS
