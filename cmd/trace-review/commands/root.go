// Package commands implements the trace-review command line.
package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trace.review/internal/config"
	"github.com/banshee-data/trace.review/internal/httputil"
	"github.com/banshee-data/trace.review/internal/monitoring"
	"github.com/banshee-data/trace.review/internal/printer"
	"github.com/banshee-data/trace.review/internal/version"
)

// globalOptions are the persistent flags shared by every subcommand. Flag
// values override the config file only when set on the command line.
type globalOptions struct {
	configPath     string
	backend        string
	dbPath         string
	slotDir        string
	redisAddr      string
	slotName       string
	resetMalformed bool
	quiet          bool
}

// app carries the streams and options of one invocation.
type app struct {
	opts  globalOptions
	in    io.Reader
	out   *printer.Printer
	root  *cobra.Command

	// httpClient is used by the remote commands; nil uses a real client.
	httpClient httputil.HTTPClient
}

// NewRootCmd builds the command tree reading from in and writing to out and
// errOut.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newRootCmd(&app{in: in, out: &printer.Printer{Out: out, Err: errOut}})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "trace-review",
		Short: "Review and label sensor trace batches",
		Long: `trace-review decodes binary batches of sensor traces and walks an
operator through labelling each sample as pass, observe, fail or checksum,
together with a dry/wet moisture flag. Annotations are shared across
batches and persisted to a durable slot every 30 seconds.`,
		Version: version.String(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.opts.quiet {
				monitoring.SetLogger(nil)
			}
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	a.root = root
	root.SetIn(a.in)
	root.SetOut(a.out.Out)
	root.SetErr(a.out.Err)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.opts.configPath, "config", "c", "", "path to a JSON or YAML config file (default: built-in defaults)")
	pf.StringVar(&a.opts.backend, "backend", config.DefaultBackend, "slot backend: sqlite, file, redis or memory")
	pf.StringVar(&a.opts.dbPath, "db-path", config.DefaultDBPath, "SQLite database path for the sqlite backend")
	pf.StringVar(&a.opts.slotDir, "slot-dir", config.DefaultSlotDir, "directory for the file backend")
	pf.StringVar(&a.opts.redisAddr, "redis-addr", config.DefaultRedisAddr, "Redis address for the redis backend")
	pf.StringVar(&a.opts.slotName, "slot", config.DefaultSlotName, "name of the slot holding the annotation store")
	pf.BoolVar(&a.opts.resetMalformed, "reset-malformed-store", false, "accept replacing a malformed store (the old content is backed up first)")
	pf.BoolVarP(&a.opts.quiet, "quiet", "q", false, "suppress diagnostic logging")

	root.AddCommand(
		newServeCmd(a),
		newLabelCmd(a),
		newInspectCmd(a),
		newExportCmd(a),
		newAnnotationsCmd(a),
		newMigrateCmd(a),
		newRemoteCmd(a),
	)
	return root
}

// Execute runs the command line against the process streams.
func Execute() error {
	return NewRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute()
}

// loadConfig reads the config file, if any, and applies explicitly set flags
// on top of it.
func (a *app) loadConfig() (*config.ReviewConfig, error) {
	cfg := config.DefaultReviewConfig()
	if a.opts.configPath != "" {
		loaded, err := config.LoadConfig(a.opts.configPath)
		if err != nil {
			return nil, a.out.ErrorWithContext(
				"Failed to load configuration",
				err.Error(),
				map[string]string{"Config": a.opts.configPath},
				[]string{"Check the file exists and is valid JSON or YAML", "Omit --config to use the built-in defaults"},
			)
		}
		cfg = loaded
	}

	pf := a.root.PersistentFlags()
	override := func(name string, dst **string, v string) {
		if pf.Changed(name) {
			*dst = &v
		}
	}
	override("backend", &cfg.Backend, a.opts.backend)
	override("db-path", &cfg.DBPath, a.opts.dbPath)
	override("slot-dir", &cfg.SlotDir, a.opts.slotDir)
	override("redis-addr", &cfg.RedisAddr, a.opts.redisAddr)
	override("slot", &cfg.SlotName, a.opts.slotName)

	if err := cfg.Validate(); err != nil {
		return nil, a.out.Error("Invalid configuration", err.Error(), nil)
	}
	return cfg, nil
}
