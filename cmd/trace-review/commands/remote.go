package commands

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trace.review/internal/api"
	"github.com/banshee-data/trace.review/internal/fsutil"
	"github.com/banshee-data/trace.review/internal/httputil"
)

const defaultServerURL = "http://localhost:8080"

func newRemoteCmd(a *app) *cobra.Command {
	var serverURL string
	client := func() *api.Client {
		hc := a.httpClient
		if hc == nil {
			hc = httputil.NewStandardClient(&http.Client{Timeout: 60 * time.Second})
		}
		return api.NewClient(serverURL, hc)
	}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Drive a running trace-review server",
	}
	cmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL, "base URL of the server")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := client().Status(cmd.Context())
			if err != nil {
				return a.out.Error("Failed to fetch status", err.Error(), []string{"Check the server is running at " + serverURL})
			}
			a.out.Info("Version:      %s (%s)\n", s.Version, s.GitSHA)
			a.out.Info("Uptime:       %s\n", (time.Duration(s.UptimeSeconds) * time.Second).String())
			a.out.Info("Slot:         %s\n", s.SlotName)
			a.out.Info("Annotations:  %d\n", s.Annotations)
			if s.Batch.ID != "" {
				a.out.Info("Batch:        %s (%s)\n", s.Batch.Name, s.Batch.ID)
			}
			if s.Flush != nil {
				a.out.Info("Flushes:      %d ok, %d failed (every %s)\n", s.Flush.Flushes, s.Flush.Failures, s.FlushInterval)
			}
			if s.StoreQuarantined {
				a.out.Warning("Store is quarantined; run: trace-review remote reset\n")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "upload <batch-file>",
		Short: "Upload a batch for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return a.out.Error("Failed to open batch file", err.Error(), nil)
			}
			defer f.Close()
			v, err := client().Upload(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return a.out.Error("Upload failed", err.Error(), nil)
			}
			a.out.Success("Loaded %d samples as batch %s\n", v.Len, v.Batch.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Flush the server's annotation store now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().Flush(cmd.Context()); err != nil {
				return a.out.Error("Flush failed", err.Error(), nil)
			}
			a.out.Success("Flushed\n")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Accept replacing a malformed store on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backup, err := client().AcceptReset(cmd.Context())
			if err != nil {
				return a.out.Error("Reset failed", err.Error(), nil)
			}
			if backup == "" {
				a.out.Info("Store was not quarantined; nothing to reset\n")
				return nil
			}
			a.out.Success("Malformed content saved to %q; store reset accepted\n", backup)
			return nil
		},
	})

	var outDir string
	export := &cobra.Command{
		Use:   "export",
		Short: "Download the export for the server's current batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, data, err := client().Export(cmd.Context())
			if err != nil {
				return a.out.Error("Export failed", err.Error(), nil)
			}
			return a.writeExport(fsutil.OSFileSystem{}, outDir, filepath.Base(name), data)
		},
	}
	export.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the export into")
	cmd.AddCommand(export)

	return cmd
}
