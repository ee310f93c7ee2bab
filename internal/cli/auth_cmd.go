package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gslide2media/gslide2media/internal/meta"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Google API credentials",
	}
	cmd.AddCommand(newAuthImportCmd())
	cmd.AddCommand(newAuthResetStoreCmd())
	return cmd
}

func newAuthImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <client_secret.json>",
		Short: "Import an OAuth client secret file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(buildLogger())
			if err != nil {
				return err
			}
			if err := store.ImportClientSecret(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "client secret imported; you may delete the source file")
			return nil
		},
	}
}

func newAuthResetStoreCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset-store",
		Short: "Delete the metadata store, including history, token, and client secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return errors.New("refusing to reset the metadata store without --force")
			}
			// ForceReset does not decrypt, so it also recovers an unreadable store.
			if err := meta.ForceReset(meta.Config{Dir: flagStoreDir, Logger: buildLogger()}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "metadata store reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reset without confirmation")
	return cmd
}
