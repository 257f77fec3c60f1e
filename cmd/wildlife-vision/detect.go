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

	"github.com/spf13/cobra"

	"github.com/fpang/wildlife-vision/internal/cli"
	"github.com/fpang/wildlife-vision/internal/filehandler"
	"github.com/fpang/wildlife-vision/internal/inference"
	"github.com/fpang/wildlife-vision/internal/report"
	"github.com/fpang/wildlife-vision/internal/vision"
)

// detector is the part of inference.Adapter the detect and video commands use.
type detector interface {
	Detect(ctx context.Context, path string) (inference.DetectionResult, error)
}

func newDetectCmd(o *rootOptions) *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "detect [image]",
		Short: "Find animals in one image and save a copy with boxes drawn",
		Long: `Detect asks the vision model for bounding boxes in a single image, draws
them with their labels and writes <name>_detections.png next to the image.
Camera and capture time from the EXIF data are printed when present.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var path string
			switch {
			case len(args) == 1:
				path = args[0]
			case pick:
				picked, err := cli.PickInputs(false)
				if errors.Is(err, cli.ErrPickCanceled) {
					fmt.Fprintln(out, "No file selected.")
					return nil
				}
				if err != nil {
					return err
				}
				path = picked[0]
			default:
				return errors.New("pass an image path or use --pick")
			}
			if !filehandler.IsImage(filepath.Ext(path)) {
				return fmt.Errorf("not a supported image: %s", path)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			capability, err := cli.InitCapability(ctx, o.cfg.Model, vision.TaskDetect)
			if err != nil {
				return fmt.Errorf("%s: %w", cli.ValidationHint(err), err)
			}
			return detectImage(ctx, inference.New(capability), path, o.cfg.Report.Locale, out)
		},
	}

	cmd.Flags().BoolVar(&pick, "pick", false, "Choose the image with a native file dialog")
	return cmd
}

func detectImage(ctx context.Context, d detector, path string, locale report.Locale, w io.Writer) error {
	res, err := d.Detect(ctx, path)
	if errors.Is(err, inference.ErrCancelled) {
		return &exitError{code: exitCancelled, err: errCancelled}
	}
	if err != nil {
		return err
	}

	overlay := filehandler.DrawDetections(res.Image, boxesFor(res.Detections, locale))
	outPath, err := filehandler.SaveOverlay(path, overlay)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d detection(s)\n", filepath.Base(path), len(res.Detections))
	for i, det := range res.Detections {
		fmt.Fprintf(w, "   %2d. %-10s %.2f  [%d,%d - %d,%d]\n", i+1,
			locale.Translate(det.Label), det.Confidence,
			det.Box.Min.X, det.Box.Min.Y, det.Box.Max.X, det.Box.Max.Y)
	}

	if meta, err := filehandler.ExtractImageMetadata(path); err == nil {
		if camera := meta.Camera(); camera != "" {
			fmt.Fprintf(w, "Camera: %s\n", camera)
		}
		if meta.HasDate {
			fmt.Fprintf(w, "Taken:  %s\n", meta.DateTaken.Format("2006-01-02 15:04:05"))
		}
		if meta.HasGPS {
			fmt.Fprintf(w, "GPS:    %.5f, %.5f\n", meta.Latitude, meta.Longitude)
		}
	}

	fmt.Fprintf(w, "Saved: %s\n", outPath)
	return nil
}

func boxesFor(detections []vision.Detection, locale report.Locale) []filehandler.Box {
	boxes := make([]filehandler.Box, len(detections))
	for i, d := range detections {
		boxes[i] = filehandler.Box{
			Rect:    d.Box,
			Caption: fmt.Sprintf("%s %.2f", locale.Translate(d.Label), d.Confidence),
		}
	}
	return boxes
}
