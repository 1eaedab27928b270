package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	pagecrop "github.com/porticus-lab/go-page-crop"
)

func newCaptureCmd(a *app) *cobra.Command {
	var scroll int

	cmd := &cobra.Command{
		Use:   "capture <url|file>",
		Short: "Capture a page and save the cropped screenshot",
		Long: `Opens the page, runs one capture cycle and saves the result as
cropped-screenshot.png in the download directory.`,
		Example: `  # Capture into the current directory
  pagecrop capture https://example.com

  # Keep earlier captures and use the rod backend
  pagecrop capture --uniquify --backend rod -o shots https://example.com`,
		Args: cobra.ExactArgs(1),
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

			if scroll > 0 {
				t, ok := p.(*pagecrop.Tab)
				if !ok {
					return fmt.Errorf("--scroll is only supported by the %s backend", backendChromedp)
				}
				if err := t.Scroll(ctx, scroll); err != nil {
					return fmt.Errorf("scrolling page: %w", err)
				}
			}

			report, err := runCycle(ctx, s, a.cfg, a.logger)
			if err != nil {
				return err
			}
			res := report.Result
			a.logger.Debug("capture finished",
				"page", fmt.Sprintf("%dx%d", res.Page.Width, res.Page.Height),
				"crop", res.Plan.Source,
				"bytes", res.Len(),
			)
			fmt.Fprintln(cmd.OutOrStdout(), report.Location)
			return nil
		},
	}

	cmd.Flags().IntVar(&scroll, "scroll", 0, "Scroll the page to this offset before capturing")
	return cmd
}

// runCycle triggers one cycle on s through a short-lived orchestrator.
func runCycle(ctx context.Context, s *session, cfg Config, logger *slog.Logger) (pagecrop.Report, error) {
	o := pagecrop.NewOrchestrator(s, cfg.Options(logger)...)
	remove := s.AddListener(o.Deliver)
	defer remove()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()
	return o.Trigger(ctx)
}
