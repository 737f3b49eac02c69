package main

import (
	"fmt"
	"log/slog"

	"github.com/kevshake/mastergateway/internal/bank"
	"github.com/kevshake/mastergateway/internal/config"
	"github.com/kevshake/mastergateway/internal/iso8583"
	"github.com/kevshake/mastergateway/internal/keychange"
	"github.com/kevshake/mastergateway/internal/router"
	"github.com/kevshake/mastergateway/internal/store"
)

// app bundles the collaborators every subcommand needs, built once
// from a loaded Config (spec.md §5 "Global configuration state": a
// snapshot captured at startup and passed explicitly to components).
type app struct {
	cfg   *config.Config
	repo  store.Repository
	kc    *keychange.Service
	dispr *bank.Dispatcher
	rtr   *router.Router
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	repo := store.NewMemoryRepository()

	kc := keychange.NewService(repo, keychange.Config{
		AutoCreateTerminal: cfg.Terminal.AutoCreate,
		EnableKeyChange:    cfg.Terminal.EnableKeyChange,
		KeyLength:          cfg.Terminal.KeyLength,
		KeyExpiryDays:      int(cfg.Terminal.KeyExpiryDays),
	})

	dispr := bank.NewDispatcher(bank.Config{
		Host:               cfg.Bank.Host,
		Port:               int(cfg.Bank.Port),
		TimeoutMs:          int(cfg.Bank.TimeoutMs),
		MaxAttempts:        int(cfg.Bank.Retry.MaxAttempts),
		DelayMs:            int(cfg.Bank.Retry.DelayMs),
		BackoffMultiplier:  float64(cfg.Bank.Retry.BackoffMultiplier),
		GatewayZonalKey:    cfg.Security.GatewayZonalKey,
		BankKey:            cfg.Security.GatewayZonalKey, // bank-specific key defaults to the zonal key absent a dedicated config option
		EnablePINTranspose: cfg.Security.Pin.EnableTransposition,
	}, iso8583.BankDictionary, slog.Default())

	rtr := router.New(router.Config{
		TerminalKey:          cfg.Security.DefaultTerminalKey,
		GatewayZonalKey:      cfg.Security.GatewayZonalKey,
		EnablePINTranspose:   cfg.Security.Pin.EnableTransposition,
		EnableCardValidation: cfg.Security.Card.EnableValidation,
		RejectInvalidCard:    cfg.Security.Card.RejectInvalid,
	}, repo, kc, dispr, slog.Default())

	return &app{cfg: cfg, repo: repo, kc: kc, dispr: dispr, rtr: rtr}, nil
}
