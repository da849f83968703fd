package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"settlement/internal/repositories"
	"settlement/internal/services"
	"settlement/internal/utils"
	"settlement/internal/worker"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the receipt email worker",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 10, "Tasks processed in parallel")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if a.env.RedisAddr == "" {
		return errRedisRequired
	}

	receipts := services.ReceiptService{Store: repositories.ReceiptRepository{DB: a.db}}
	docs := services.DocsService{Receipts: receipts}
	srv := worker.NewServer(a.queueOpt(), workerConcurrency)
	mux := worker.NewMux(worker.ReceiptEmailHandler{
		Receipts: receipts,
		Mailer:   worker.LogMailer{},
		Render:   docs.GenerateReceipt,
	})

	if err := srv.Start(mux); err != nil {
		return err
	}
	utils.L().Info("receipt worker started")
	<-ctx.Done()
	srv.Shutdown()
	utils.L().Info("receipt worker stopped")
	return nil
}
