package main

import (
	"context"
	"database/sql"

	"cardmesh/internal/ports/nakama"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule is the plugin entry point Nakama looks up; it proxies to the relay package.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	return nakama.InitModule(ctx, logger, db, nk, initializer)
}

// main is never called: the package is built with -buildmode=plugin and
// loaded by Nakama, but it is required for `go build ./...` to link.
func main() {}
