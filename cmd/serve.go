package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vynguyen175/vizion/internal/auth"
	"github.com/vynguyen175/vizion/internal/utils"
	"github.com/vynguyen175/vizion/internal/web"
	"github.com/vynguyen175/vizion/internal/workspace"
)

var (
	serveAddr         string
	serveShutdownWait time.Duration
	servePurgeEvery   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			c.ListenAddr = serveAddr
		}
		log, cleanup, err := newLogger(c)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, c, log)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := utils.EnsureDir(c.DataDir); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		authSvc := auth.New(st, log,
			auth.WithBcryptCost(c.BcryptCost),
			auth.WithSessionTTL(c.SessionTTL))
		ws := workspace.New(st, c.DataDir, c.AnalysisOptions(), log)
		srv, err := web.New(authSvc, ws, st, log, web.Options{
			MaxUploadBytes: c.MaxUploadBytes(),
			PreviewRows:    c.PreviewRows,
			CookieSecure:   c.CookieSecure,
			ChartWidth:     c.ChartWidth,
			ChartHeight:    c.ChartHeight,
		})
		if err != nil {
			return err
		}
		httpSrv := &http.Server{
			Addr:              c.ListenAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("listening", zap.String("addr", c.ListenAddr), zap.String("database", c.DatabaseURL))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownWait)
			defer cancel()
			log.Info("shutting down")
			return httpSrv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			purgeSessions(gctx, authSvc, log, servePurgeEvery)
			return nil
		})
		fmt.Printf("✓ Vizion running at http://%s\n", c.ListenAddr)
		return g.Wait()
	},
}

// purgeSessions drops expired sessions every interval until ctx ends.
func purgeSessions(ctx context.Context, a *auth.Service, log *zap.Logger, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("purge sessions", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				log.Info("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	serveCmd.Flags().DurationVar(&serveShutdownWait, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
	serveCmd.Flags().DurationVar(&servePurgeEvery, "purge-interval", time.Hour, "how often expired sessions are removed (0 disables)")
}
