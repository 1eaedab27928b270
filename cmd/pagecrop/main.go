// pagecrop captures web pages and saves a square crop of them.
//
// Usage:
//
//	pagecrop capture [flags] <url|file>
//	pagecrop measure [flags] <url|file>
//	pagecrop crop [flags] <capture.png>
//	pagecrop serve [flags] <url|file>
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/porticus-lab/go-page-crop/internal/cli"
)

const version = "0.1.0"

func main() {
	root := cli.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
