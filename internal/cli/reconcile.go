package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ordersvc/commander/internal/control"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one maintenance pass: sweep stale records and drain the fallback queue",
	Run:   runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.NewApp(*cfg)
	if err != nil {
		slog.Error("Failed to initialize commander", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx := context.Background()

	app.Sweeper().Sweep(ctx)

	delivered, err := app.Drainer().Drain(ctx)
	if err != nil {
		slog.Error("Drain failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Reconciliation done, %d queued notifications delivered.\n", delivered)
}
