package viruscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/lefred/mysql-component-viruscan/internal/access"
	"github.com/lefred/mysql-component-viruscan/internal/audit"
	"github.com/lefred/mysql-component-viruscan/internal/cache"
	"github.com/lefred/mysql-component-viruscan/internal/engine"
	"github.com/lefred/mysql-component-viruscan/internal/host"
	"github.com/lefred/mysql-component-viruscan/internal/matchtable"
	"github.com/lefred/mysql-component-viruscan/internal/scanner"
	"github.com/lefred/mysql-component-viruscan/internal/status"
)

// Function names registered with the host.
const (
	FuncVirusScan         = "virus_scan"
	FuncVirusReloadEngine = "virus_reload_engine"
)

// Deps are everything a Component needs from the outside.
type Deps struct {
	Backend  scanner.Backend
	Provider access.Provider
	Dir      string
	Include  string
	Capacity int

	Logger   *slog.Logger
	Notifier Notifier
	Audit    *audit.AuditLog
	Meter    metric.Meter
}

// Component is the installable unit: it owns the engine, the record store
// and the counters, and registers its functions, privilege, status variables
// and table with a host.
type Component struct {
	Service  *Service
	Engines  *engine.Manager
	Store    *cache.Store
	Counters *status.Counters
	Table    *matchtable.Share

	meter      metric.Meter
	metricsReg metric.Registration
	functions  []string
	log        *slog.Logger
}

// New assembles a component. Nothing is loaded until Init.
func New(d Deps) *Component {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Component{
		Store:    cache.New(d.Capacity),
		Counters: &status.Counters{},
		meter:    d.Meter,
		log:      log,
	}
	c.Table = matchtable.NewShare(c.Store)
	c.Engines = engine.NewManager(d.Backend, engine.Options{
		Dir:     d.Dir,
		Include: d.Include,
		Logger:  log,
		OnPublish: func(h *engine.Handle) {
			c.Counters.SetEngine(h.Signatures, h.Version)
		},
		OnBackgroundReload: func(source string, o engine.Outcome) {
			c.Service.RecordBackgroundReload(source, o)
		},
	})
	c.Service = NewService(access.NewGuard(d.Provider, log), c.Engines, c.Store, c.Counters, ServiceOptions{
		Notifier: d.Notifier,
		Audit:    d.Audit,
		Logger:   log,
	})
	return c
}

// Init registers the component with reg and loads the first engine. A scan
// library or signature database failure is logged and leaves the component
// running without an engine; registration failures are returned.
func (c *Component) Init(ctx context.Context, reg host.Registrar) error {
	c.log.Info("initializing...")

	if err := reg.RegisterStatus(status.Names(), c.Counters.Variables); err != nil {
		c.log.Error("Failed to register status variable", "error", err)
		return err
	}
	c.log.Info("Status variable(s) registered")

	if err := c.Engines.LoadInitial(ctx); err != nil {
		if errors.Is(err, engine.ErrLibraryInit) {
			c.log.Error("scan engine unavailable, component runs degraded", "error", err)
		}
	} else if h, err := c.Engines.Current(); err == nil {
		c.log.Info(fmt.Sprintf("%s %s initialized", c.Engines.Backend().Name(), h.Version))
		h.Release()
	}

	var result error
	if err := reg.RegisterPrivilege(access.PrivilegeVirusScan); err != nil {
		c.log.Error("could not register privilege 'VIRUS_SCAN'.", "error", err)
		result = err
	} else {
		c.log.Info("new privilege 'VIRUS_SCAN' has been registered successfully.")
	}

	for _, f := range []struct {
		name string
		fn   host.Func
	}{
		{FuncVirusScan, c.Service.VirusScan},
		{FuncVirusReloadEngine, c.Service.VirusReloadEngine},
	} {
		if err := reg.RegisterFunction(f.name, f.fn); err != nil {
			c.unregisterFunctions(reg)
			return fmt.Errorf("register %s: %w", f.name, err)
		}
		c.functions = append(c.functions, f.name)
	}

	if err := reg.AddTable(c.Table); err != nil {
		c.log.Error("table has NOT been registered successfully!", "error", err)
		c.unregisterFunctions(reg)
		return err
	}
	c.log.Info("table has been registered successfully.", "table", matchtable.Name)

	if c.meter != nil {
		r, err := c.Counters.RegisterMetrics(c.meter)
		if err != nil {
			c.log.Warn("register metrics", "error", err)
		} else {
			c.metricsReg = r
		}
	}
	return result
}

func (c *Component) unregisterFunctions(reg host.Registrar) {
	for _, name := range c.functions {
		if _, err := reg.UnregisterFunction(name); err != nil {
			c.log.Warn("unregister function", "function", name, "error", err)
		}
	}
	c.functions = nil
}

// Deinit undoes Init and retires the engine.
func (c *Component) Deinit(reg host.Registrar) error {
	var errs []error
	c.Engines.Close()

	if c.metricsReg != nil {
		errs = append(errs, c.metricsReg.Unregister())
		c.metricsReg = nil
	}
	if err := reg.UnregisterStatus(status.Names()); err != nil {
		c.log.Error("Failed to unregister status variable", "error", err)
		errs = append(errs, err)
	} else {
		c.log.Info("Status variable(s) unregistered")
	}
	if err := reg.UnregisterPrivilege(access.PrivilegeVirusScan); err != nil {
		c.log.Error("could not unregister privilege 'VIRUS_SCAN'.", "error", err)
		errs = append(errs, err)
	} else {
		c.log.Info("privilege 'VIRUS_SCAN' has been unregistered successfully.")
	}
	c.unregisterFunctions(reg)
	if err := reg.DropTable(matchtable.Name); err != nil {
		errs = append(errs, err)
	}
	c.Store.Clear()
	c.log.Info("uninstalled.")
	return errors.Join(errs...)
}
