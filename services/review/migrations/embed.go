package migrations

import "embed"

// FS holds the review service schema, applied in filename order.
//
//go:embed *.up.sql
var FS embed.FS
