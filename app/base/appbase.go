package appbase

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ipld/go-ipld-prime"
	ipldjson "github.com/ipld/go-ipld-prime/codec/json"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/urfave/cli/v2"

	_ "github.com/warptools/dsmeta/app/base/helpgen"
	"github.com/warptools/dsmeta/pkg/config"
)

const VERSION = "v0.1.0"

// ResultKey is the App.Metadata key a command sets to a datamodel.Node to have it printed after it returns.
const ResultKey = "result"

var App = &cli.App{
	Name:    "dsmeta",
	Version: VERSION,
	Usage:   "manage dataset descriptors: schemas, partitioning and locations",

	Reader:    closedReader{}, // Replace with os.Stdin in real application; or other wiring, in tests.
	Writer:    panicWriter{},  // Replace with os.Stdout in real application; or other wiring, in tests.
	ErrWriter: panicWriter{},  // Replace with os.Stderr in real application; or other wiring, in tests.

	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Usage:   "Metadata root: a local path, or a `URI` with scheme file, mem, s3 or sqlite",
			EnvVars: []string{config.EnvDsmetaRoot},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			EnvVars: []string{config.EnvDsmetaDebug},
		},
		&cli.BoolFlag{
			Name: "quiet",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Enable JSON API output",
		},
		&cli.StringFlag{
			Name:      "trace.file",
			Usage:     "Enable tracing and emit output to file",
			TakesFile: true,
		},
		&cli.BoolFlag{
			Name:  "trace.http.enable",
			Usage: "Enable remote tracing over http",
		},
		&cli.BoolFlag{
			Name:  "trace.http.insecure",
			Usage: "Allows insecure http",
		},
		&cli.StringFlag{
			Name:  "trace.http.endpoint",
			Usage: "Sets an endpoint for remote open-telemetry tracing collection",
		},
		&cli.StringFlag{
			Name:      "metrics.file",
			Usage:     "Write metadata operation metrics to file, in the Prometheus text format, when the command exits",
			TakesFile: true,
		},
	},

	// The commands slice is updated by each package that contains commands.
	// Import the parent of this package to get that all done for you!
	Commands: []*cli.Command{},

	ExitErrHandler: func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		if c.Bool("json") {
			bytes, err := json.Marshal(err)
			if err != nil {
				panic("error marshaling json")
			}
			fmt.Fprintf(c.App.ErrWriter, "%s\n", string(bytes))
		} else {
			fmt.Fprintf(c.App.ErrWriter, "error: %s\n", err)
		}
	},

	After: afterFunc,
}

// afterFunc prints the node a command left under ResultKey, if any, as JSON.
// The entry is removed afterwards, so a reused App doesn't print it twice.
func afterFunc(c *cli.Context) error {
	result, ok := c.App.Metadata[ResultKey]
	if !ok || result == nil {
		return nil
	}
	delete(c.App.Metadata, ResultKey)
	n, ok := result.(datamodel.Node)
	if !ok {
		panic("invalid result value - not a datamodel.Node")
	}
	serial, err := ipld.Encode(n, ipldjson.Encode)
	if err != nil {
		panic("failed to serialize output")
	}
	fmt.Fprintf(c.App.Writer, "%s\n", serial)
	return nil
}

// SetResult stores n for printing once the command returns.
func SetResult(c *cli.Context, n datamodel.Node) {
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[ResultKey] = n
}

// Aaaand the other modifications to `urfave/cli` that are unfortunately only possible by manipulating globals:
func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version", // And no short aliases.  "-v" is for "verbose"!
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type closedReader struct{}

// Read is a dummy method that always returns EOF.
func (c closedReader) Read(p []byte) (int, error) {
	return 0, io.EOF
}

type panicWriter struct{}

// Write is a dummy method that always panics.  You're supposed to replace panicWriter values before use.
func (p panicWriter) Write(data []byte) (int, error) {
	panic("replace the Writer and ErrWriter on the App value in packages that use it!")
}
