package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/wildlife-vision/internal/batch"
	"github.com/fpang/wildlife-vision/internal/cli"
	"github.com/fpang/wildlife-vision/internal/inference"
	"github.com/fpang/wildlife-vision/internal/vision"
)

var errNothingClassified = errors.New("no images could be classified")

func newClassifyCmd(o *rootOptions) *cobra.Command {
	var (
		pick     bool
		noExport bool
	)

	cmd := &cobra.Command{
		Use:   "classify [images, zip archives or directories...]",
		Short: "Classify images and zip archives, then save and export the results",
		Long: `Classify runs the vision model over every image in the given inputs.
Zip archives are extracted to a scratch directory and directories are scanned
for images. Progress is printed after each input. Press Ctrl-C to cancel;
a cancelled run saves nothing.

When the run completes, the results are saved to history and a report is
exported (disable with --no-export).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			inputs := args
			if pick {
				picked, err := cli.PickInputs(false)
				if errors.Is(err, cli.ErrPickCanceled) {
					fmt.Fprintln(out, "No files selected.")
					return nil
				}
				if err != nil {
					return err
				}
				inputs = append(inputs, picked...)
			}
			if len(inputs) == 0 {
				return errors.New("no inputs: pass image, zip or directory paths, or use --pick")
			}

			resolved, err := cli.ResolveInputs(inputs)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			capability, err := cli.InitCapability(ctx, o.cfg.Model, vision.TaskClassify)
			if err != nil {
				return fmt.Errorf("%s: %w", cli.ValidationHint(err), err)
			}
			st, err := o.openStores(ctx)
			if err != nil {
				return err
			}

			exec := batch.New(inference.New(capability), batch.Options{ScratchRoot: o.cfg.Store.ScratchDir})
			return classifyInputs(ctx, exec, st, resolved, !noExport, out)
		},
	}

	cmd.Flags().BoolVar(&pick, "pick", false, "Choose inputs with a native file dialog")
	cmd.Flags().BoolVar(&noExport, "no-export", false, "Save to history without exporting a report")
	return cmd
}

// classifyInputs runs one batch, prints progress, and persists the result
// if and only if the run completed with at least one label.
func classifyInputs(ctx context.Context, exec *batch.Executor, st *stores, inputs []string, export bool, w io.Writer) error {
	run, err := exec.Start(ctx, inputs)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Classifying %d input(s)... (Ctrl-C to cancel)\n", len(inputs))

	outcome := followRun(run, w)
	return finishRun(ctx, outcome, st, export, w)
}

// followRun prints every progress event and returns the terminal outcome.
func followRun(run *batch.Run, w io.Writer) batch.Outcome {
	for ev := range run.Events() {
		if ev.Kind == batch.EventProgress {
			fmt.Fprintln(w, cli.FormatProgress(ev.Processed, ev.Total, filepath.Base(ev.Input), ev.Snapshot.ClassCounts.Total()))
		}
	}
	return run.Wait()
}

func finishRun(ctx context.Context, outcome batch.Outcome, st *stores, export bool, w io.Writer) error {
	switch outcome.State {
	case batch.StateCancelled:
		fmt.Fprintln(w, "Classification cancelled. Nothing was saved.")
		return &exitError{code: exitCancelled, err: errCancelled}
	case batch.StateFailed:
		return fmt.Errorf("classification failed: %w", outcome.Err)
	case batch.StateCompleted:
	default:
		return fmt.Errorf("unexpected run state %s", outcome.State)
	}

	if outcome.Result.Empty() {
		return errNothingClassified
	}

	rec, err := st.history.Save(outcome.Result.ClassCounts, outcome.Result.ImageClassifications)
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "============================================")
	fmt.Fprintln(w, "Classification Results")
	fmt.Fprintln(w, "============================================")
	fmt.Fprintf(w, "Images classified: %d\n", len(outcome.Result.ImageClassifications))
	if outcome.Skipped > 0 {
		fmt.Fprintf(w, "Images skipped:    %d\n", outcome.Skipped)
	}
	fmt.Fprintf(w, "Duration:          %s\n", cli.FormatDurationShort(outcome.Duration))
	fmt.Fprintln(w, "--------------------------------------------")
	cli.WriteBarChart(w, outcome.Result.ClassCounts, st.locale.Translate)
	fmt.Fprintln(w, "--------------------------------------------")
	fmt.Fprintf(w, "Saved: %s\n", filepath.Join(st.history.Dir(), rec.ID))

	if !export {
		return nil
	}
	// The run is already saved; a late Ctrl-C must not abort the export.
	name, err := st.reports.Export(context.WithoutCancel(ctx), rec.ID)
	if err != nil {
		log.Error().Err(err).Str("record", rec.ID).Msg("Report export failed")
		return fmt.Errorf("results saved as %s but report export failed: %w", rec.ID, err)
	}
	fmt.Fprintf(w, "Report: %s\n", filepath.Join(st.reports.Dir(), name))
	return nil
}
