package commands

import (
	"github.com/spf13/cobra"
)

func newAnnotationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotations",
		Short: "List or reset the annotation store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			store, b, err := a.openStore(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()

			a.out.Annotations(store.All())
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Back up a malformed store and replace it with an empty one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, b, err := a.openStore(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer b.Close()

			if !store.Quarantined() && !a.opts.resetMalformed {
				a.out.Info("Annotation store %q is healthy (%d annotations); nothing to reset\n", store.SlotName(), store.Len())
				return nil
			}
			if store.Quarantined() {
				backup, err := store.AcceptReset(ctx)
				if err != nil {
					return a.out.Error("Failed to reset malformed store", err.Error(), nil)
				}
				a.out.Step("Malformed content saved to %q\n", backup)
			}
			if err := store.Flush(ctx); err != nil {
				return a.out.Error("Failed to write the reset store", err.Error(), nil)
			}
			a.out.Success("Annotation store %q reset\n", store.SlotName())
			return nil
		},
	})
	return cmd
}
