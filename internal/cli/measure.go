package cli

import (
	"errors"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"

	pagecrop "github.com/porticus-lab/go-page-crop"
)

// measurement is what the measure command prints.
type measurement struct {
	Tab      pagecrop.TabID    `json:"tab"`
	Geometry pagecrop.Geometry `json:"geometry"`
	Page     pagecrop.PageSize `json:"page"`
	Crop     *cropBox          `json:"crop,omitempty"`
}

type cropBox struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Side   int    `json:"side"`
	Output int    `json:"output"`
	Mode   string `json:"mode"`
}

func newCropBox(plan pagecrop.CropPlan) *cropBox {
	return &cropBox{
		X:      plan.Source.Min.X,
		Y:      plan.Source.Min.Y,
		Side:   plan.Side(),
		Output: plan.Output.X,
		Mode:   plan.Mode.String(),
	}
}

func newMeasureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "measure <url|file>",
		Short: "Print the page geometry and the crop it would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			g, err := p.Measure(ctx)
			if err != nil {
				return fmt.Errorf("measuring page: %w", err)
			}
			m := measurement{Tab: p.ID(), Geometry: g, Page: g.PageSize()}
			plan, err := a.cfg.Policy().Plan(m.Page)
			switch {
			case err == nil:
				m.Crop = newCropBox(plan)
			case errors.Is(err, pagecrop.ErrEmptyCrop):
				a.logger.Warn("page too short to crop", "height", m.Page.Height)
			default:
				return err
			}
			if err := json.MarshalWrite(cmd.OutOrStdout(), m, jsontext.WithIndent("  ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}
