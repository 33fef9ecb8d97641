// Package migrations embeds the SQL schema so tooling and integration tests
// bootstrap from the same source.
package migrations

import _ "embed"

//go:embed schema.sql
var Schema string
