package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	intdb "settlement/internal/db"
	router "settlement/internal/http"
	"settlement/internal/http/handlers"
	"settlement/internal/services"
	"settlement/internal/utils"
)

var (
	serveMigrate    bool
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "Create missing tables before serving")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if serveMigrate {
		if err := intdb.Migrate(ctx, a.db, a.dialect); err != nil {
			return err
		}
	}
	if a.env.GinMode != "" {
		gin.SetMode(a.env.GinMode)
	}

	svc := a.settlement(ctx)
	api := handlers.API{
		Settlement: svc,
		Docs:       services.DocsService{Invoices: svc.Invoices, Receipts: svc.Receipts},
		DB:         a.db,
	}

	srv := &http.Server{
		Addr:              a.env.AppAddr,
		Handler:           router.NewRouter(a.env, api),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      a.env.GatewayTimeout + 20*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.L().Info("http server listening", zap.String("addr", a.env.AppAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		utils.L().Info("shutting down http server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	utils.L().Info("http server stopped")
	return nil
}
