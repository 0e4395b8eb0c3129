package main

import (
	"os"

	dsapp "github.com/warptools/dsmeta/app"
	"github.com/warptools/dsmeta/app/base/helpgen"
	"github.com/warptools/dsmeta/app/base/render"
)

func main() {
	dsapp.App.Reader = os.Stdin
	dsapp.App.Writer = os.Stdout
	dsapp.App.ErrWriter = os.Stderr
	if render.IsTerminal(os.Stdout) {
		helpgen.Mode = render.Mode_ANSI
	}
	if err := dsapp.App.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
