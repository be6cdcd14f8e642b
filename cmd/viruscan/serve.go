package viruscan

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lefred/mysql-component-viruscan/internal/access"
	"github.com/lefred/mysql-component-viruscan/internal/audit"
	"github.com/lefred/mysql-component-viruscan/internal/host"
	"github.com/lefred/mysql-component-viruscan/internal/httpapi"
	"github.com/lefred/mysql-component-viruscan/internal/notify"
	"github.com/lefred/mysql-component-viruscan/internal/telemetry"
	component "github.com/lefred/mysql-component-viruscan/internal/viruscan"
)

var (
	flagServeAddr string
	flagServeDir  string
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the engine and serve virus_scan and virus_reload_engine over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagServeAddr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&flagServeDir, "db", "", "signature directory (overrides database.dir)")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := initLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	tc := cfg.GetTelemetry()
	meter, shutdownMetrics := telemetry.InitMetrics(ctx, "viruscan", tc.GetOTLPEndpoint(), tc.GetInterval(), log)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			log.Warn("metrics shutdown", "error", err)
		}
	}()

	deps := component.Deps{
		Backend:  backend,
		Provider: provider,
		Dir:      pickString(flagServeDir, cfg.GetDatabase().GetDir()),
		Include:  cfg.GetDatabase().GetInclude(),
		Capacity: cfg.GetStore().GetCapacity(),
		Logger:   log,
		Meter:    meter,
	}
	if url := cfg.GetNotify().GetNATSURL(); url != "" {
		pub, err := notify.Connect(url, cfg.GetNotify().GetSubject())
		if err != nil {
			log.Warn("match notifications disabled", "error", err)
		} else {
			defer pub.Close()
			deps.Notifier = pub
		}
	}
	if p := cfg.GetAudit().GetPath(); p != "" {
		deps.Audit = audit.NewAuditLog(p)
	}

	h := host.NewLocal()
	c := component.New(deps)
	if err := c.Init(ctx, h); err != nil {
		return err
	}
	defer func() {
		if err := c.Deinit(h); err != nil {
			log.Warn("deinit", "error", err)
		}
	}()

	rc := cfg.GetReload()
	if rc.IsWatchEnabled() {
		go func() {
			if err := c.Engines.Watch(ctx, rc.GetDebounce()); err != nil {
				log.Error("signature watcher stopped", "error", err)
			}
		}()
	}
	if spec := rc.GetSchedule(); spec != "" {
		stopSchedule, err := c.Engines.Schedule(ctx, spec)
		if err != nil {
			return err
		}
		defer stopSchedule()
	}

	sc := cfg.GetServer()
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:          log,
		Addr:            pickString(flagServeAddr, sc.GetAddr()),
		Host:            h,
		Guard:           access.NewGuard(provider, log),
		MaxBodyBytes:    sc.GetMaxBodyBytes(),
		TrustUserHeader: sc.IsUserHeaderTrusted(),
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	log.Info("listening", "addr", pickString(flagServeAddr, sc.GetAddr()), "dir", deps.Dir)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
