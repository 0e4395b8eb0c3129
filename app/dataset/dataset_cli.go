package datasetcli

import (
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/urfave/cli/v2"

	appbase "github.com/warptools/dsmeta/app/base"
	"github.com/warptools/dsmeta/app/base/util"
	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/fsys"
	"github.com/warptools/dsmeta/pkg/logging"
	"github.com/warptools/dsmeta/pkg/partition"
)

func init() {
	appbase.App.Commands = append(appbase.App.Commands,
		createCmdDef,
		updateCmdDef,
		showCmdDef,
		deleteCmdDef,
		existsCmdDef,
		listCmdDef,
		checkCmdDef,
	)
}

// middlewares is the stack every dataset command runs under.
var middlewares = []func(cli.ActionFunc) cli.ActionFunc{
	util.CmdMiddlewareLogging,
	util.CmdMiddlewareTracingConfig,
	util.CmdMiddlewareTracingSpan,
	util.CmdMiddlewareProvider,
}

func action(cmd cli.ActionFunc) cli.ActionFunc {
	return util.ChainCmdMiddleware(cmd, middlewares...)
}

var descriptorFlags = []cli.Flag{
	&cli.StringFlag{
		Name:      "schema",
		Usage:     "Read the record schema from `FILE` (\"-\" for stdin)",
		TakesFile: true,
	},
	&cli.StringFlag{
		Name:  "format",
		Usage: "Storage format of the data files, e.g. avro, parquet or csv (default avro)",
	},
	&cli.StringFlag{
		Name:  "partition",
		Usage: "Partition strategy `EXPRESSION`, e.g. '[identity(\"region\"), day(\"ts\")]'",
	},
	&cli.StringFlag{
		Name:  "location",
		Usage: "Data `URI`; defaults to the dataset's directory under the metadata root",
	},
	&cli.StringSliceFlag{
		Name:  "property",
		Usage: "Extended property as `KEY=VALUE`",
	},
	&cli.StringFlag{
		Name:      "descriptor",
		Usage:     "Read a whole descriptor document (JSON) from `FILE` (\"-\" for stdin); other flags override its fields",
		TakesFile: true,
	},
}

var createCmdDef = &cli.Command{
	Name:      "create",
	Usage:     "Create a dataset",
	UsageText: "dsmeta create --schema FILE [--format F] [--partition EXPR] [--location URI] [--property K=V]... <name>",
	Description: heredoc.Doc(`
		Stores the descriptor of a new dataset.
		Dataset names are dot separated, like "warehouse.orders"; each part becomes a directory.
		Fails if the dataset already exists.
	`),
	Flags:  descriptorFlags,
	Action: action(cmdCreate),
}

var updateCmdDef = &cli.Command{
	Name:      "update",
	Usage:     "Replace the descriptor of an existing dataset",
	UsageText: "dsmeta update --schema FILE [--format F] [--partition EXPR] [--location URI] [--property K=V]... <name>",
	Description: heredoc.Doc(`
		Overwrites the stored descriptor of a dataset.
		Nothing from the previous descriptor is kept: pass every field again.
	`),
	Flags:  descriptorFlags,
	Action: action(cmdUpdate),
}

func cmdCreate(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	d, err := descriptorFromFlags(c, name)
	if err != nil {
		return err
	}
	stored, err := util.Provider(c.Context).Create(c.Context, name, d)
	if err != nil {
		return err
	}
	return reportStored(c, "created", name, stored)
}

func cmdUpdate(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	d, err := descriptorFromFlags(c, name)
	if err != nil {
		return err
	}
	stored, err := util.Provider(c.Context).Update(c.Context, name, d)
	if err != nil {
		return err
	}
	return reportStored(c, "updated", name, stored)
}

func reportStored(c *cli.Context, verb, name string, stored *dsapi.Descriptor) error {
	if c.Bool("json") {
		doc, err := dsapi.DocumentFromDescriptor(name, stored)
		if err != nil {
			return err
		}
		appbase.SetResult(c, dsapi.Node(&doc, "DescriptorDocument"))
		return nil
	}
	logger := logging.Ctx(c.Context)
	if stored.Location != nil {
		logger.Out("%s %s at %s", verb, name, stored.Location)
	} else {
		logger.Out("%s %s", verb, name)
	}
	return nil
}

// nameArg returns the single positional argument.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when there isn't exactly one argument
func nameArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", dsapi.ErrorInvalidArgument(c.Command.Name+" takes exactly one dataset name")
	}
	return c.Args().First(), nil
}

// descriptorFromFlags assembles a descriptor from --descriptor and the field flags.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the flags are missing, contradictory or malformed
//   - dsmeta-error-serialization -- when the descriptor document does not parse
//   - dsmeta-error-schema-invalid -- when the schema does not parse
//   - dsmeta-error-partition-expression -- when the partition expression does not parse
func descriptorFromFlags(c *cli.Context, name string) (*dsapi.Descriptor, error) {
	var d *dsapi.Descriptor
	switch {
	case c.IsSet("descriptor") && c.IsSet("schema"):
		return nil, dsapi.ErrorInvalidArgument("--descriptor and --schema cannot be used together")
	case c.IsSet("descriptor"):
		data, err := readInput(c, c.String("descriptor"))
		if err != nil {
			return nil, err
		}
		doc, err := dsapi.ParseDescriptorDocument(data)
		if err != nil {
			return nil, err
		}
		if doc.Name != nil && *doc.Name != name {
			return nil, dsapi.ErrorInvalidArgument("descriptor document is for another dataset",
				[2]string{"documentName", *doc.Name},
				[2]string{"name", name},
			)
		}
		if d, err = doc.Descriptor(); err != nil {
			return nil, err
		}
	case c.IsSet("schema"):
		data, err := readInput(c, c.String("schema"))
		if err != nil {
			return nil, err
		}
		schema, err := dsapi.ParseSchema(string(data))
		if err != nil {
			return nil, err
		}
		d = &dsapi.Descriptor{Schema: schema}
	default:
		return nil, dsapi.ErrorInvalidArgument("one of --schema or --descriptor is required")
	}

	if c.IsSet("format") {
		d.Format = dsapi.Format(c.String("format"))
	}
	d.Format = d.Format.OrDefault()
	if !d.Format.IsKnown() {
		logging.Ctx(c.Context).Info("", "format %q is not a known format; storing it as given", d.Format)
	}
	if c.IsSet("partition") {
		strategy, err := partition.Parse(c.String("partition"))
		if err != nil {
			return nil, err
		}
		d.PartitionStrategy = strategy
	}
	if c.IsSet("location") {
		u, err := fsys.ParseLocation(c.String("location"))
		if err != nil {
			return nil, err
		}
		d.Location = u
	}
	for _, kv := range c.StringSlice("property") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, dsapi.ErrorInvalidArgument("property must look like KEY=VALUE", [2]string{"property", kv})
		}
		if dsapi.IsReservedProperty(key) {
			return nil, dsapi.ErrorInvalidArgument("property key is reserved", [2]string{"property", key})
		}
		d = d.WithProperty(key, value)
	}
	return d, nil
}

// readInput reads a file named by a flag, where "-" is the app's stdin.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the file cannot be read
func readInput(c *cli.Context, name string) ([]byte, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, dsapi.ErrorInvalidArgument("cannot read input file: "+err.Error(), [2]string{"file", name})
	}
	return data, nil
}
