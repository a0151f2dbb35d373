package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parcelview/internal/crypt"
	"parcelview/internal/errors"
)

func newEncryptCmd(a *app) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a GeoPackage, zipped shapefile or GeoJSON file into a dataset blob",
		Long: `Encrypt seals a parcel file with PARCELVIEW_ENCRYPTION_KEY so serve,
browse and export can read it from data.path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Secrets.EncryptionKey == "" {
				return errors.New(errors.ErrCodeConfig, "PARCELVIEW_ENCRYPTION_KEY is not set")
			}
			if out == "" {
				out = a.cfg.Data.Path
			}
			plain, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}
			tok, err := crypt.Encrypt(plain, []byte(a.cfg.Secrets.EncryptionKey))
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, tok, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			a.logger.Info("encrypted dataset", "in", in, "out", out, "bytes", len(tok))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "plaintext parcel file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "encrypted output (default data.path)")
	cmd.MarkFlagRequired("in")
	return cmd
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "keygen",
		Short:       "Print a new random dataset key",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := crypt.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k)
			return nil
		},
	}
}
