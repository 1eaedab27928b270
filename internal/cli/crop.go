package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pagecrop "github.com/porticus-lab/go-page-crop"
	"github.com/porticus-lab/go-page-crop/internal/raster"
)

// cropFile composites the capture stored at path onto a page of the given
// size and returns the encoded crop with its plan.
func cropFile(path string, size pagecrop.PageSize, scrollY int, policy pagecrop.CropPolicy) ([]byte, pagecrop.CropPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pagecrop.CropPlan{}, err
	}
	img, err := raster.Decode(data)
	if err != nil {
		return nil, pagecrop.CropPlan{}, fmt.Errorf("%w: %w", pagecrop.ErrDecodeFailure, err)
	}
	if size.Width == 0 {
		size.Width = img.Bounds().Dx()
	}
	if size.Height == 0 {
		size.Height = img.Bounds().Dy()
	}
	plan, err := policy.Plan(size)
	if err != nil {
		return nil, pagecrop.CropPlan{}, err
	}
	canvas := policy.Composite(size, img, scrollY)
	out, err := raster.EncodePNG(plan.Crop(canvas))
	if err != nil {
		return nil, pagecrop.CropPlan{}, fmt.Errorf("%w: %w", pagecrop.ErrExport, err)
	}
	return out, plan, nil
}

func newCropCmd(a *app) *cobra.Command {
	var (
		pageWidth  int
		pageHeight int
		scrollY    int
	)

	cmd := &cobra.Command{
		Use:   "crop <capture.png>",
		Short: "Crop an existing capture without a browser",
		Long: `Composites a previously captured viewport image onto a canvas of the
given page size and saves the square crop. Page dimensions default to the
size of the input image.`,
		Example: `  # Crop a 1024x768 capture of a 1600px tall page
  pagecrop crop --page-width 1024 --page-height 1600 viewport.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size := pagecrop.PageSize{Width: pageWidth, Height: pageHeight}
			out, plan, err := cropFile(args[0], size, scrollY, a.cfg.Policy())
			if err != nil {
				return err
			}
			loc, err := a.cfg.Exporter().Export(cmd.Context(), out, pagecrop.OutputFilename)
			if err != nil {
				return fmt.Errorf("%w: %w", pagecrop.ErrExport, err)
			}
			a.logger.Info("screenshot exported", "crop", plan.Source, "location", loc)
			fmt.Fprintln(cmd.OutOrStdout(), loc)
			return nil
		},
	}

	cmd.Flags().IntVar(&pageWidth, "page-width", 0, "Page width (default: image width)")
	cmd.Flags().IntVar(&pageHeight, "page-height", 0, "Page height (default: image height)")
	cmd.Flags().IntVar(&scrollY, "scroll-y", 0, "Vertical scroll position, used with --legacy")
	return cmd
}
