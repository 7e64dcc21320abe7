package commands

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/monitoring"
	"github.com/banshee-data/trace.review/internal/review"
	"github.com/banshee-data/trace.review/internal/samples"
)

func newLabelCmd(a *app) *cobra.Command {
	var shuffle bool

	cmd := &cobra.Command{
		Use:   "label <batch-file>",
		Short: "Label a batch interactively in the terminal",
		Long: `Label a batch interactively. Type one or more keys and press enter:

  ` + review.KeyHelp + `
  ?=help w=flush now

An empty line confirms. The store is flushed every flush interval and on exit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("shuffle") {
				cfg.Shuffle = &shuffle
			}

			ctx := cmd.Context()
			store, b, err := a.openStore(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()

			ctrl := review.NewController(review.ControllerConfig{
				Store:      store,
				Weather:    a.loadWeather(cfg),
				WindowDays: cfg.GetWindowDays(),
				Shuffle:    cfg.GetShuffle(),
			})
			if err := a.loadBatchFile(ctx, ctrl, args[0]); err != nil {
				return err
			}

			flusher := annotations.NewFlusher(annotations.FlusherConfig{
				Store:    store,
				Interval: cfg.GetFlushInterval(),
				Logger:   monitoring.NewLogger(""),
			})
			return a.labelLoop(ctx, ctrl, flusher)
		},
	}
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "shuffle the batch before review")
	return cmd
}

// loadBatchFile decodes path into ctrl, naming the batch after the file.
func (a *app) loadBatchFile(ctx context.Context, ctrl *review.Controller, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return a.out.Error("Failed to open batch file", err.Error(), nil)
	}
	defer f.Close()

	batch, err := ctrl.Load(ctx, filepath.Base(path), f)
	if errors.Is(err, samples.ErrDecode) {
		return a.out.ErrorWithContext("Failed to decode batch", err.Error(), map[string]string{"File": path}, nil)
	}
	if err != nil {
		return a.out.Error("Failed to load batch", err.Error(), nil)
	}
	if n := ctrl.View().Len; n == 0 {
		a.out.Warning("%s holds no complete %d-byte records\n", path, samples.RecordSize)
	} else {
		a.out.Step("Loaded %d samples from %s (batch %s)\n", n, path, batch.ID)
	}
	return nil
}

// splitKeys turns one typed line into keys: an empty line confirms, a number
// is a single jump, anything else is one key per character.
func splitKeys(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return []string{" "}
	}
	if _, err := strconv.Atoi(line); err == nil {
		return []string{line}
	}
	if line == "space" || line == "quit" || line == "help" {
		return []string{line}
	}
	keys := make([]string, 0, len(line))
	for _, r := range line {
		if r == ' ' || r == '\t' {
			continue
		}
		keys = append(keys, string(r))
	}
	return keys
}

// labelLoop reads keys until quit or end of input. The flusher runs for the
// whole loop and performs its final flush before labelLoop returns.
func (a *app) labelLoop(ctx context.Context, ctrl *review.Controller, flusher *annotations.Flusher) error {
	loopCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		return flusher.Run(gctx)
	})

	a.out.View(ctrl.View())
	scanner := bufio.NewScanner(a.in)
	for a.out.Info("> "); scanner.Scan(); a.out.Info("> ") {
		if quit := a.handleLine(gctx, ctrl, flusher, scanner.Text()); quit {
			break
		}
	}
	scanErr := scanner.Err()

	cancel()
	if err := g.Wait(); err != nil {
		return a.out.Error("Flusher stopped with an error", err.Error(), nil)
	}
	if err := flusher.LastError(); err != nil {
		return a.out.Error("Final flush failed", err.Error(), []string{"Annotations made in this session were not saved"})
	}
	if scanErr != nil && !errors.Is(scanErr, io.EOF) {
		return a.out.Error("Failed to read input", scanErr.Error(), nil)
	}

	v := ctrl.View()
	a.out.Success("Saved; %d of %d samples in this batch annotated\n", v.Annotated, v.Len)
	return nil
}

// handleLine applies the keys on one input line and reports whether the
// operator asked to quit.
func (a *app) handleLine(ctx context.Context, ctrl *review.Controller, flusher *annotations.Flusher, line string) bool {
	for _, key := range splitKeys(line) {
		switch key {
		case "q", "quit":
			return true
		case "?", "help":
			a.out.Info("%s\n", review.KeyHelp)
			continue
		case "w":
			if err := flusher.FlushNow(ctx); err != nil {
				a.out.Warning("Flush failed: %v\n", err)
			} else {
				a.out.Success("Flushed\n")
			}
			continue
		}

		before := ctrl.View()
		ev, ok := review.EventForKey(key, before.Len)
		if !ok {
			a.out.Warning("Unknown key %q (? for help)\n", key)
			continue
		}
		if !ctrl.Apply(ev) {
			if _, isConfirm := ev.(review.Confirm); isConfirm && before.Len > 0 && !before.Staged.Complete() {
				a.out.Warning("Choose a label before confirming\n")
			}
		}
	}
	a.out.View(ctrl.View())
	return false
}
