package migrations

import "embed"

// UpFiles embeds the gallery schema migrations for use by the migrator.
//
//go:embed *.up.sql
var UpFiles embed.FS
