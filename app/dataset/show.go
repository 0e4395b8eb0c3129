package datasetcli

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"

	appbase "github.com/warptools/dsmeta/app/base"
	"github.com/warptools/dsmeta/app/base/render"
	"github.com/warptools/dsmeta/app/base/util"
	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/logging"
)

var showCmdDef = &cli.Command{
	Name:      "show",
	Usage:     "Print the descriptor of a dataset",
	UsageText: "dsmeta show [--markdown] <name>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "markdown",
			Usage: "Print a markdown report, rendered for the terminal when stdout is one",
		},
	},
	Action: action(cmdShow),
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135")).Width(14)
	nameStyle  = lipgloss.NewStyle().Bold(true)
)

func cmdShow(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	d, err := util.Provider(c.Context).Load(c.Context, name)
	if err != nil {
		return err
	}
	switch {
	case c.Bool("json"):
		doc, err := dsapi.DocumentFromDescriptor(name, d)
		if err != nil {
			return err
		}
		appbase.SetResult(c, dsapi.Node(&doc, "DescriptorDocument"))
		return nil
	case c.Bool("markdown"):
		md, err := markdownReport(name, d)
		if err != nil {
			return err
		}
		mode := render.Mode_Markdown
		if render.IsTerminal(c.App.Writer) {
			mode = render.Mode_ANSI
		}
		if err := render.Render(md, c.App.Writer, mode); err != nil {
			return dsapi.ErrorInternal("cannot render report", err)
		}
		return nil
	}

	logger := logging.Ctx(c.Context)
	logger.Out("%s", nameStyle.Render(name))
	for _, line := range summary(d) {
		logger.Out("%s %s", labelStyle.Render(line[0]), line[1])
	}
	for _, key := range d.PropertyKeys() {
		logger.Out("%s %s=%s", labelStyle.Render("property"), key, d.Properties[key])
	}
	return nil
}

// summary lists the one-line facts about a descriptor as label and value pairs.
func summary(d *dsapi.Descriptor) [][2]string {
	lines := [][2]string{
		{"format", string(d.Format.OrDefault())},
	}
	if d.Location != nil {
		lines = append(lines, [2]string{"location", d.Location.String()})
	}
	partitioning := "none"
	if d.IsPartitioned() {
		partitioning = d.PartitionStrategy.Expression()
	}
	lines = append(lines, [2]string{"partitioning", partitioning})
	if d.SchemaLocation != nil {
		lines = append(lines, [2]string{"schema", d.SchemaLocation.String()})
	}
	lines = append(lines, [2]string{"fingerprint", d.Schema.Fingerprint()})
	return lines
}

// markdownReport describes a dataset as a markdown document: a summary table,
// the extended properties and the full schema.
//
// Errors:
//
//   - dsmeta-error-serialization -- when the schema cannot be rendered
func markdownReport(name string, d *dsapi.Descriptor) ([]byte, error) {
	text, err := d.Schema.CanonicalText()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", name)
	buf.WriteString("| | |\n|---|---|\n")
	for _, line := range summary(d) {
		fmt.Fprintf(&buf, "| %s | `%s` |\n", line[0], line[1])
	}
	if keys := d.PropertyKeys(); len(keys) > 0 {
		buf.WriteString("\n## Properties\n\n")
		for _, key := range keys {
			fmt.Fprintf(&buf, "- `%s`: %s\n", key, d.Properties[key])
		}
	}
	buf.WriteString("\n## Schema\n\n```json\n")
	buf.WriteString(strings.TrimRight(text, "\n"))
	buf.WriteString("\n```\n")
	return buf.Bytes(), nil
}
