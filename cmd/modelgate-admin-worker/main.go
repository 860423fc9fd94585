//go:build js && wasm

package main

import (
	"github.com/syumai/workers"

	"github.com/dvcrn/modelgate-admin-client/internal/auth"
	"github.com/dvcrn/modelgate-admin-client/internal/credentials"
	"github.com/dvcrn/modelgate-admin-client/internal/env"
	"github.com/dvcrn/modelgate-admin-client/internal/logger"
	"github.com/dvcrn/modelgate-admin-client/internal/rpc"
	"github.com/dvcrn/modelgate-admin-client/internal/server"
)

var srv *server.Server

func init() {
	store, err := credentials.NewKVStore(env.GetOrDefault("MODELGATE_KV_NAMESPACE", credentials.DefaultKVNamespace))
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("Failed to open KV credential store")
	}

	refreshTimeout, err := env.GetDuration("MODELGATE_REFRESH_TIMEOUT", auth.DefaultRefreshTimeout)
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("Invalid MODELGATE_REFRESH_TIMEOUT")
	}

	client, err := rpc.NewClient(rpc.Config{
		BaseURL:        env.GetOrDefault("MODELGATE_URL", rpc.DefaultBaseURL),
		RefreshTimeout: refreshTimeout,
	}, credentials.NewSession(store))
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("Failed to create admin client")
	}

	adminKey, _ := env.Get("ADMIN_API_KEY")
	srv = server.NewServer(client, adminKey)
}

func main() {
	workers.Serve(srv.Handler())
}
