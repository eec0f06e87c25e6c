package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ordersvc/commander/internal/infra/storage/postgres"
)

var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "List failed orders whose compensation needs manual reconciliation",
	Run:   runEscalations,
}

func init() {
	rootCmd.AddCommand(escalationsCmd)
}

func runEscalations(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	sagaLog := postgres.NewSagaLogRepo(db)
	ids, err := sagaLog.Escalations(ctx)
	if err != nil {
		slog.Error("Failed to query escalations", "error", err)
		os.Exit(1)
	}
	if len(ids) == 0 {
		fmt.Println("No escalated orders.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ORDER\tREASON\tFAILED AT")

	for _, id := range ids {
		latest, err := sagaLog.Latest(ctx, id)
		if err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", id, latest.Reason, latest.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}
