package main

import (
	"encoding/json"
	"fmt"
	"io"

	recon "github.com/erp/clinicsync/internal/application/reconciliation"
	"github.com/erp/clinicsync/internal/infrastructure/config"
	"github.com/erp/clinicsync/internal/infrastructure/erp"
	"github.com/erp/clinicsync/internal/infrastructure/fhirclient"
	"github.com/erp/clinicsync/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func loadConfig(opts *RootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFrom(opts.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(&logger.Config{
		Level:      opts.LogLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, log, nil
}

func newFHIRClient(cfg *config.Config) (*fhirclient.Client, error) {
	return fhirclient.NewClient(&fhirclient.Config{
		BaseURL:             cfg.FHIR.URL,
		Username:            cfg.FHIR.Username,
		Password:            cfg.FHIR.Password,
		TimeoutSeconds:      cfg.FHIR.TimeoutSeconds,
		ObservationPageSize: cfg.FHIR.ObservationPageSize,
	})
}

// newDispatcher builds the engine over the configured ERP and FHIR servers.
func newDispatcher(cfg *config.Config, fhir *fhirclient.Client, log *zap.Logger) (*recon.Dispatcher, error) {
	client, err := erp.NewClient(&erp.Config{
		BaseURL:        cfg.ERP.URL,
		Database:       cfg.ERP.Database,
		Username:       cfg.ERP.Username,
		Password:       cfg.ERP.Password,
		TimeoutSeconds: cfg.ERP.TimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}
	quantity, err := decimal.NewFromString(cfg.Reconciliation.DefaultServiceQuantity)
	if err != nil {
		return nil, fmt.Errorf("invalid default service quantity: %w", err)
	}
	store := erp.NewStore(client, erp.NewSessionProvider(client, 0), log)
	return recon.NewDispatcher(store, fhir, recon.Options{
		Extract: recon.ExtractOptions{
			DefaultServiceUnitRef:  cfg.Reconciliation.DefaultServiceUnitRef,
			DefaultServiceQuantity: quantity,
		},
		EnrichmentCode:  cfg.Reconciliation.EnrichmentCode,
		EnrichmentField: cfg.Reconciliation.EnrichmentField,
		AbsentSentinel:  cfg.Reconciliation.AbsentSentinel,
	}, nil, log), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
