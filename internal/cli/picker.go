package cli

import (
	"errors"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/wildlife-vision/internal/filehandler"
)

// ErrPickCanceled is returned when the user closes the file dialog.
var ErrPickCanceled = errors.New("file selection canceled")

// PickInputs opens a native multi-file dialog filtered to images and zip
// archives. withVideo adds video files to the filter.
func PickInputs(withVideo bool) ([]string, error) {
	filters := zenity.FileFilters{
		{Name: "Images", Patterns: filehandler.ImagePatterns()},
		{Name: "Zip archives", Patterns: filehandler.ArchivePatterns()},
	}
	if withVideo {
		filters = append(filters, zenity.FileFilter{Name: "Videos", Patterns: filehandler.VideoPatterns()})
	}

	selected, err := zenity.SelectFileMultiple(
		zenity.Title("Select camera trap images"),
		filters,
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return nil, ErrPickCanceled
		}
		log.Error().Err(err).Msg("File picker failed")
		return nil, err
	}

	log.Info().Int("count", len(selected)).Msg("Files picked via native dialog")
	return selected, nil
}
