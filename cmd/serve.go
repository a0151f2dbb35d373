package main

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"parcelview/internal/dataset"
	"parcelview/internal/errors"
	"parcelview/internal/logging"
	"parcelview/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		addr   string
		secure bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the parcel map and table over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), addr, secure)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().BoolVar(&secure, "secure-cookie", false, "mark the session cookie Secure (serve behind TLS)")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string, secure bool) error {
	if err := a.cfg.RequireSecrets(); err != nil {
		return err
	}
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	mode, err := a.mode()
	if err != nil {
		return err
	}

	src := dataset.FileSource{
		Loader: dataset.NewLoader([]byte(a.cfg.Secrets.EncryptionKey)),
		Path:   a.cfg.Data.Path,
	}
	p := logging.Start(a.logger)
	ds, err := src.Dataset(ctx)
	if err != nil {
		return err
	}
	p.Done("Dataset ready", "parcels", ds.Len())

	store, closeStore, err := a.sessionStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := server.New(server.Deps{
		Sessions:  a.manager(store),
		Data:      src,
		Attribute: a.cfg.Scale.Attribute,
		Mode:      mode,
		Tiles:     a.cfg.Tiles,
		LoginRate: a.cfg.Server.LoginRate,
		Secure:    secure,
		Logger:    a.logger,
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.BuildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return logging.WithLogger(context.Background(), a.logger)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(errors.ErrCodeConfig, err, "listen on %s", addr)
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}
