// Copyright 2025 James Ross
// Package migrations embeds the engine's SQL schema migrations so the
// binary ships them without a separate asset step.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
