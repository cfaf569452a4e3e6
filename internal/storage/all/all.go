// Package all registers every storage backend with the storage factory.
// Import it for side effects from binaries:
//
//	import _ "github.com/vuvuzela92/waregouse-project/internal/storage/all"
package all

import (
	_ "github.com/vuvuzela92/waregouse-project/internal/storage/mssql"
	_ "github.com/vuvuzela92/waregouse-project/internal/storage/postgres"
	_ "github.com/vuvuzela92/waregouse-project/internal/storage/sqlite"
)
