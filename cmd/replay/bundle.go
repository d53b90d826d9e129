package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// BundleOptions holds flags for the bundle command.
type BundleOptions struct {
	*RootOptions
	EventTag string
	File     string
	DryRun   bool
}

type bundleResult struct {
	EventType      string `json:"event_type,omitempty"`
	Kind           string `json:"kind,omitempty"`
	CorrelationKey string `json:"correlation_key"`
	Action         string `json:"action,omitempty"`
	PartnerID      int64  `json:"partner_id,omitempty"`
	OrderID        int64  `json:"order_id,omitempty"`
	LineID         int64  `json:"line_id,omitempty"`
	OrderCancelled bool   `json:"order_cancelled,omitempty"`
}

func newBundleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BundleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Reconcile one FHIR bundle read from a file",
		Long: `Reconcile one FHIR bundle against the configured ERP, bypassing the
journal, the worker pool and de-duplication.

Examples:
  replay bundle --event c --file order.json
  replay bundle --event medication-d --file - < bundle.json
  replay bundle --event u --file order.json --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBundle(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.EventTag, "event", "", "event tag, e.g. c, u, d or medication-c (required)")
	cmd.Flags().StringVar(&opts.File, "file", "", `bundle file, "-" reads stdin (required)`)
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "only parse the event and print its visit")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runBundle(cmd *cobra.Command, opts *BundleOptions) error {
	data, err := readInput(cmd.InOrStdin(), opts.File)
	if err != nil {
		return err
	}
	bundle, err := clinical.ParseBundle(data)
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	fhir, err := newFHIRClient(cfg)
	if err != nil {
		return err
	}
	dispatcher, err := newDispatcher(cfg, fhir, log)
	if err != nil {
		return err
	}

	if opts.DryRun {
		key, err := dispatcher.CorrelationKey(opts.EventTag, bundle)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), bundleResult{CorrelationKey: key})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := dispatcher.Dispatch(ctx, opts.EventTag, bundle)
	if err != nil {
		if kind := reconciliation.KindOf(err); kind != nil {
			log.Error("Event not reconciled", zap.String("code", kind.Code), zap.Bool("retryable", reconciliation.IsRetryable(err)))
		}
		return err
	}
	return writeJSON(cmd.OutOrStdout(), bundleResult{
		EventType:      string(out.EventType),
		Kind:           string(out.Kind),
		CorrelationKey: out.CorrelationKey,
		Action:         string(out.Action),
		PartnerID:      int64(out.PartnerID),
		OrderID:        int64(out.OrderID),
		LineID:         int64(out.LineID),
		OrderCancelled: out.OrderCancelled,
	})
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return data, nil
}
