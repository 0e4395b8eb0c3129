/*
Package helpgen holds our custom help text generators,
and wires them into `urfave/cli` at package init time.

The templates emit markdown.
Mode decides whether that markdown is printed as-is or rendered for a terminal;
the binary switches it to ANSI when stdout is a terminal.

(Package init time is the only hook `urfave/cli` offers for this:
its help printing is configured exclusively through package-scope vars.)
*/
package helpgen

import (
	"bytes"
	"io"
	"strings"
	"text/tabwriter"
	"text/template"

	"github.com/urfave/cli/v2"

	"github.com/warptools/dsmeta/app/base/render"
)

/*
	How the docs strings of a cli.Command are used here:

	- Usage -- a one-liner, shown in the parent command's list of children.
	- UsageText -- a synopsis: how to call the command, with its arguments.  May be multi-line.
	- Description -- freetext prose; may be multi-line.  Shows up in the `-h` for that command.
	- ArgsUsage -- used for the synopsis only when UsageText is empty.

	Flags only have their Usage field.  A word in backticks in it becomes the value placeholder.
*/

// Mode is how help text is rendered.
var Mode = render.Mode_Markdown

// printHelpCustom is the entrypoint for `urfave/cli`'s customization.
//
// See the function of the same name upstream for reference.
// This function is considerably derived from it.
func printHelpCustom(out io.Writer, tmpl string, data interface{}, customFuncs map[string]interface{}) {
	funcMap := template.FuncMap{
		"join": strings.Join,
		"trim": strings.TrimSpace,
	}
	for key, value := range customFuncs {
		funcMap[key] = value
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 1, 8, 4, ' ', 0)
	t := template.Must(template.New("help").Funcs(funcMap).Parse(tmpl))
	template.Must(t.New("helpNameTemplate").Parse(helpNameTemplate))
	template.Must(t.New("usageTemplate").Parse(usageTemplate))
	template.Must(t.New("visibleCommandTemplate").Parse(visibleCommandTemplate))
	template.Must(t.New("visibleFlagTemplate").Parse(visibleFlagTemplate))

	if err := t.Execute(w, data); err != nil {
		panic(err)
	}
	_ = w.Flush()
	if err := render.Render(buf.Bytes(), out, Mode); err != nil {
		// Fall back to the plain markdown.
		_, _ = out.Write(buf.Bytes())
	}
}

func init() {
	cli.HelpPrinterCustom = printHelpCustom
}
