package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/fsutil"
	"github.com/banshee-data/trace.review/internal/samples"
	"github.com/banshee-data/trace.review/internal/security"
)

func newExportCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export <batch-file>",
		Short: "Write the annotations for a batch to <name>_annotations.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("out") {
				cfg.ExportDir = &outDir
			}

			fsys := fsutil.OSFileSystem{}
			seq, err := samples.ReadFile(fsys, args[0])
			if err != nil {
				return a.out.Error("Failed to decode batch", err.Error(), nil)
			}

			store, b, err := a.openStore(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()

			ids := make([]string, len(seq))
			for i, s := range seq {
				ids[i] = s.ID
			}
			data, err := store.Export(ids)
			if err != nil {
				return a.out.Error("Failed to encode export", err.Error(), nil)
			}

			return a.writeExport(fsys, cfg.GetExportDir(), annotations.ExportFilename(filepath.Base(args[0])), data)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory to write the export into (default from config, .)")
	return cmd
}

// writeExport writes data to dir/name after checking the result stays inside
// dir.
func (a *app) writeExport(fsys fsutil.FileSystem, dir, name string, data []byte) error {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return a.out.Error("Failed to create export directory", err.Error(), nil)
	}
	path := filepath.Join(dir, name)
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return a.out.Error("Refusing to write export", err.Error(), nil)
	}
	if err := fsys.WriteFile(path, data, 0o644); err != nil {
		return a.out.Error("Failed to write export", err.Error(), nil)
	}
	a.out.Success("Wrote %s\n", path)
	return nil
}
