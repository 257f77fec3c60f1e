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

	"github.com/fpang/wildlife-vision/internal/aggregate"
	"github.com/fpang/wildlife-vision/internal/cli"
	"github.com/fpang/wildlife-vision/internal/filehandler"
	"github.com/fpang/wildlife-vision/internal/inference"
	"github.com/fpang/wildlife-vision/internal/vision"
)

func newVideoCmd(o *rootOptions) *cobra.Command {
	var fps float64

	cmd := &cobra.Command{
		Use:   "video <file>",
		Short: "Run detection on frames sampled from a video",
		Long: `Video samples frames with ffmpeg (default 1 frame per second, lowered for
long clips), runs detection on each frame and prints how many frames
contained each animal. Nothing is saved to history. Requires ffmpeg and
ffprobe on PATH.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !filehandler.IsVideo(filepath.Ext(path)) {
				return fmt.Errorf("not a supported video: %s", path)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			info, err := filehandler.ProbeVideo(ctx, path)
			if err != nil {
				return err
			}
			frames, err := filehandler.ExtractFrames(ctx, path, o.cfg.Store.ScratchDir, fps, info)
			if ctx.Err() != nil {
				return &exitError{code: exitCancelled, err: errCancelled}
			}
			if err != nil {
				return err
			}
			defer frames.Cleanup()

			capability, err := cli.InitCapability(ctx, o.cfg.Model, vision.TaskDetect)
			if err != nil {
				return fmt.Errorf("%s: %w", cli.ValidationHint(err), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s, %d frame(s) at %.2f fps\n",
				filepath.Base(path), cli.FormatDurationShort(info.Duration), len(frames.FramePaths), frames.ExtractionFPS)

			tally, err := tallyFrames(ctx, inference.New(capability), frames.FramePaths, out)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Frames containing each animal:")
			cli.WriteBarChart(out, tally, o.cfg.Report.Locale.Translate)
			return nil
		},
	}

	cmd.Flags().Float64Var(&fps, "fps", 0, "Frames sampled per second (0 = default)")
	return cmd
}

// tallyFrames runs detection on every frame and counts, per label, the
// frames in which it appears. Frames that fail are skipped.
func tallyFrames(ctx context.Context, d detector, frames []string, w io.Writer) (aggregate.ClassCounts, error) {
	tally := aggregate.ClassCounts{}
	for i, frame := range frames {
		res, err := d.Detect(ctx, frame)
		if errors.Is(err, inference.ErrCancelled) {
			fmt.Fprintln(w, "Detection cancelled.")
			return nil, &exitError{code: exitCancelled, err: errCancelled}
		}
		if err != nil {
			log.Warn().Err(err).Str("frame", filepath.Base(frame)).Msg("Skipping frame")
			continue
		}

		seen := make(map[string]bool)
		for _, det := range res.Detections {
			if !seen[det.Label] {
				seen[det.Label] = true
				tally[det.Label]++
			}
		}
		fmt.Fprintln(w, cli.FormatProgress(i+1, len(frames), filepath.Base(frame), len(res.Detections)))
	}
	return tally, nil
}
