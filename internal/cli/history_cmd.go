package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gslide2media/gslide2media/internal/app"
	"github.com/gslide2media/gslide2media/internal/meta"
	"github.com/gslide2media/gslide2media/internal/options"
)

// newPrompter is swapped out by tests.
var newPrompter = NewTerminalPrompter

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and reuse saved option sets",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryRerunCmd())
	cmd.AddCommand(newHistorySetLabelCmd())
	cmd.AddCommand(newHistoryRemoveCmd())
	cmd.AddCommand(newHistoryClearCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved option sets, most recently used first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(buildLogger())
			if err != nil {
				return err
			}
			named, unnamed := store.Collate()
			if len(named) == 0 && len(unnamed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "history is empty")
				return nil
			}

			out := cmd.OutOrStdout()
			if len(named) > 0 {
				fmt.Fprintln(out, "Labeled:")
				for _, o := range named {
					fmt.Fprintf(out, "  %s\n", o.View())
				}
			}
			if len(unnamed) > 0 {
				fmt.Fprintln(out, "Unlabeled:")
				for _, o := range unnamed {
					fmt.Fprintf(out, "  %s\n", o.View())
				}
			}
			return nil
		},
	}
}

func newHistoryRerunCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "rerun",
		Short: "Run a saved option set again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()
			store, err := openStore(logger)
			if err != nil {
				return err
			}

			var opts *options.Options
			if label != "" {
				opts, err = store.Lookup(label)
			} else {
				opts, err = selectFromHistory(store)
			}
			if err != nil {
				return err
			}

			summary, err := app.Run(cmd.Context(), app.Config{
				Store:  store,
				Logger: logger,
				Notify: printAuthURL,
			}, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files (%d skipped as duplicates)\n", summary.Written, summary.Skipped)
			if summary.Failed() {
				return fmt.Errorf("%d of the selected presentations failed", len(summary.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "label of the option set to rerun")
	return cmd
}

func newHistorySetLabelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-label <label>",
		Short: "Assign a label to a saved option set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(buildLogger())
			if err != nil {
				return err
			}
			chosen, err := selectFromHistory(store)
			if err != nil {
				return err
			}

			// The labeled set replaces the old identity entirely.
			if err := store.RemoveSet(chosen); err != nil {
				return err
			}
			chosen.SetLabel(args[0])
			if err := store.Add(chosen); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "labeled as %q\n", args[0])
			return nil
		},
	}
}

func newHistoryRemoveCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a saved option set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(buildLogger())
			if err != nil {
				return err
			}

			if label != "" {
				if err := store.Remove(label); err != nil {
					return err
				}
			} else {
				chosen, err := selectFromHistory(store)
				if err != nil {
					return err
				}
				if err := store.RemoveSet(chosen); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed")
			return nil
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "label of the option set to remove")
	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every saved option set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(buildLogger())
			if err != nil {
				return err
			}

			if !force {
				if !Interactive() {
					return errors.New("refusing to clear history without --force")
				}
				ok, err := newPrompter().Confirm("Clear the entire export history?")
				if err != nil {
					return err
				}
				if !ok {
					return ErrPromptAborted
				}
			}

			if err := store.Clear(); err != nil {
				if errors.Is(err, meta.ErrNothingToClear) {
					fmt.Fprintln(cmd.OutOrStdout(), "history is already empty")
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "clear without confirmation")
	return cmd
}

// selectFromHistory runs the interactive selection over the collated history.
func selectFromHistory(store *meta.Store) (*options.Options, error) {
	if !Interactive() {
		return nil, ErrNotInteractive
	}
	named, unnamed := store.Collate()
	if len(named) == 0 && len(unnamed) == 0 {
		return nil, meta.ErrNoHistory
	}
	return newPrompter().Select(named, unnamed)
}
