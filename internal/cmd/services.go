package main

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpit/timersync/internal/gateway"
	"github.com/stockpit/timersync/internal/timers"
	timersdb "github.com/stockpit/timersync/internal/timers/db"
)

type Services struct {
	Timers  *timers.App
	Gateway *gateway.Service
}

func setupServices(pool *pgxpool.Pool, gatewayCfg gateway.Config) *Services {
	// Database layer -> Repository layer -> App layer -> Gateway
	queries := timersdb.New(pool)
	timersRepo := timers.NewRepository(queries)
	timersApp := timers.NewApp(timersRepo)

	gatewayService := gateway.NewService(gatewayCfg, timersApp)

	return &Services{
		Timers:  timersApp,
		Gateway: gatewayService,
	}
}
