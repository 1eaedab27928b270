// Package pagecrop captures the visible part of a web page, composites it
// onto a canvas the size of the whole page, crops a fixed square out of it
// and exports the square as cropped-screenshot.png.
//
// # Capturing
//
// For one-off captures use the package-level helpers:
//
//	res, err := pagecrop.Capture(ctx, "https://example.com", pagecrop.WithNoSandbox())
//
// For repeated captures create a [Browser], which reuses the browser process:
//
//	b, err := pagecrop.NewBrowser(pagecrop.WithViewport(1024, 768))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	if _, err := b.Open(ctx, "https://example.com"); err != nil {
//	    log.Fatal(err)
//	}
//	res, err := b.Capture(ctx)
//
// [RodBrowser] offers the same API on top of go-rod.
//
// # Cycles
//
// A capture is a message-driven cycle run by an [Orchestrator]:
//
//	takeScreenshot -> resolve active tab -> getPageDetails -> setPageDetails
//	  -> capture visible area -> composite -> crop -> export
//
// The page answers getPageDetails through a [Probe] which reports the
// largest of the document's client, scroll and offset sizes. Any step
// that yields nothing aborts the cycle and the orchestrator returns to
// [Idle] without exporting. Only one cycle runs at a time; a trigger that
// arrives while a cycle is in flight fails with [ErrBusy].
//
//	o := pagecrop.NewOrchestrator(b, pagecrop.WithExporter(&pagecrop.FileExporter{Dir: "shots"}))
//	b.AddListener(o.Deliver)
//	go o.Run(ctx)
//
//	report, err := o.Trigger(ctx)
//
// # Crop geometry
//
// With [PrimaryCrop] and a page of width W and height H the source square
// has side S = H-200 and its top-left corner at ((W-S)/2+200, (H-S)/2+200).
// The square is drawn into a 512x512 image. [LegacyCrop] keeps the older
// framing for callers that must reproduce earlier output: the same side S,
// centred on the page height with a +100 offset, drawn at full size.
//
// A [Result] gives access to the exported PNG:
//
//	res.Bytes()                                    // []byte
//	res.DataURL()                                  // data:image/png;base64,...
//	res.WriteToFile("cropped-screenshot.png", 0o644)
package pagecrop
