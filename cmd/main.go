package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"parcelview/internal/colorscale"
	"parcelview/internal/config"
	"parcelview/internal/dataset"
	"parcelview/internal/errors"
	"parcelview/internal/logging"
	"parcelview/internal/session"
	"parcelview/internal/viewstate"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if stderrors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// skipConfig marks commands that must run without a valid configuration.
const skipConfig = "skip-config"

// app carries what every command shares once the root pre-run has resolved
// flags and configuration.
type app struct {
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "parcelview",
		Short:         "Explore parcels whose deeded acreage disagrees with their mapped area",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if a.verbose {
				level = log.DebugLevel
			}
			a.logger = logging.New(os.Stderr, level)
			cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))

			if cmd.Annotations[skipConfig] != "" {
				return nil
			}
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			if cfg.File != "" {
				a.logger.Debug("config loaded", "file", cfg.File)
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default ./"+config.FileName+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newBrowseCmd(a),
		newExportCmd(a),
		newEncryptCmd(a),
		newKeygenCmd(),
		newInspectCmd(a),
		newConfigCmd(a),
	)
	return root
}

// loadDataset decrypts and parses the configured dataset.
func (a *app) loadDataset(ctx context.Context) (*dataset.Dataset, error) {
	if a.cfg.Secrets.EncryptionKey == "" {
		return nil, errors.New(errors.ErrCodeConfig, "PARCELVIEW_ENCRYPTION_KEY is not set")
	}
	loader := dataset.NewLoader([]byte(a.cfg.Secrets.EncryptionKey))

	p := logging.Start(a.logger)
	ds, err := loader.LoadFile(ctx, a.cfg.Data.Path)
	if err != nil {
		return nil, err
	}
	p.Done(fmt.Sprintf("Loaded %d parcels", ds.Len()), "path", a.cfg.Data.Path)
	return ds, nil
}

func (a *app) mode() (colorscale.Mode, error) {
	return colorscale.ParseMode(a.cfg.Scale.Mode)
}

// scale fits the configured color scale to ds.
func (a *app) scale(ds *dataset.Dataset) (*colorscale.Scale, error) {
	mode, err := a.mode()
	if err != nil {
		return nil, err
	}
	return colorscale.Build(ds, a.cfg.Scale.Attribute, mode)
}

func (a *app) levels() viewstate.Levels {
	return viewstate.Levels{Overview: a.cfg.View.OverviewZoom, Detail: a.cfg.View.DetailZoom}
}

// sessionStore opens the configured session backend. The returned func
// releases it.
func (a *app) sessionStore(ctx context.Context) (session.Store, func() error, error) {
	ttl := a.cfg.SessionTTL()
	if a.cfg.Session.Backend != "redis" {
		return session.NewMemoryStore(ttl), func() error { return nil }, nil
	}

	rs := session.NewRedisStore(session.NewRedisClient(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB), ttl)
	if err := rs.Ping(ctx); err != nil {
		rs.Close()
		return nil, nil, errors.Wrap(errors.ErrCodeConfig, err, "connect to redis at %s", a.cfg.Redis.Addr)
	}
	a.logger.Info("sessions in redis", "addr", a.cfg.Redis.Addr)
	return rs, rs.Close, nil
}

// manager gates logins with the configured credentials.
func (a *app) manager(store session.Store) *session.Manager {
	return session.NewManager(session.NewGate(a.cfg.Secrets.Username, a.cfg.Secrets.Password), store, a.levels())
}
