package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ordersvc/commander/internal/control"
)

var resumeAll bool

var resumeCmd = &cobra.Command{
	Use:   "resume [order-id...]",
	Short: "Resume interrupted order sagas",
	Long:  `Resume drives interrupted orders to a terminal phase. Pass order IDs, or --all to resume every in-flight order.`,
	Run:   runResume,
}

func init() {
	resumeCmd.Flags().BoolVar(&resumeAll, "all", false, "resume every in-flight order")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if !resumeAll && len(args) == 0 {
		slog.Error("Nothing to do: pass order IDs or --all")
		os.Exit(1)
	}

	app, err := control.NewApp(*cfg)
	if err != nil {
		slog.Error("Failed to initialize commander", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx := context.Background()

	if resumeAll {
		if err := app.Commander().ResumeAll(ctx); err != nil {
			slog.Error("Some orders could not be resumed", "error", err)
			os.Exit(1)
		}
		fmt.Println("All in-flight orders resumed.")
		return
	}

	failed := 0
	for _, id := range args {
		res, err := app.Commander().Resume(ctx, id)
		if err != nil {
			slog.Error("Failed to resume order", "order_id", id, "error", err)
			failed++
			continue
		}
		fmt.Printf("%s -> %s", id, res.FinalPhase)
		if res.Reason != "" {
			fmt.Printf(" (%s)", res.Reason)
		}
		fmt.Println()
	}
	if failed > 0 {
		os.Exit(1)
	}
}
