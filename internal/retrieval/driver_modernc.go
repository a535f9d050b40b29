//go:build !sqlite_vec || !cgo

package retrieval

import (
	_ "modernc.org/sqlite"
)

// Pure-Go driver. The sqlite-vec extension is not available here; searches
// fall back to an in-process cosine scan.
const sqliteDriver = "sqlite"
