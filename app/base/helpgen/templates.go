package helpgen

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/urfave/cli/v2"
)

/*
	A word of warning: this file mutates package-scope variables of `urfave/cli` during init.

	Setting templates on every command object instead would be possible,
	but forgetting a single one gives a panic from the template engine that is miserable to debug.
*/

// helper for heredoc dedenting plus don't do a trailing linebreak.
func docnl(s string) string {
	s = heredoc.Doc(s)
	return s[:len(s)-1]
}

// Appears near the top of each help page.
var helpNameTemplate = docnl(`
	{{.HelpName}}{{if .Usage}} - {{.Usage}}{{end}}
`)

// The synopsis.  Commands with positional arguments should set UsageText or ArgsUsage.
var usageTemplate = docnl(`
	{{if .UsageText}}{{trim .UsageText}}{{else}}{{.HelpName}}{{if .VisibleFlags}} [options]{{end}}{{if .ArgsUsage}} {{.ArgsUsage}}{{end}}{{end}}
`)

var visibleCommandTemplate = docnl(`

	{{- range .VisibleCommands}}
	### {{join .Names ", "}}
	{{.Usage}}
	{{end}}

`)

var visibleFlagTemplate = docnl(`
	{{- range $i, $e := .VisibleFlags}}
	{{$e.String}}
	{{end}}
`) // `.String` goes through FlagStringer, set further down in this file.

func init() {
	cli.AppHelpTemplate = appHelpTemplate
	cli.CommandHelpTemplate = commandHelpTemplate
	cli.SubcommandHelpTemplate = subcommandHelpTemplate
}

// appHelpTemplate is used for just the root command.
var appHelpTemplate = heredoc.Doc(`
	## NAME
	{{template "helpNameTemplate" .}}

	{{- if .UsageText}}
	## USAGE
	{{.UsageText}}
	{{- end}}

	{{- if .Version}}{{if not .HideVersion}}
	## VERSION
	{{.Version}}
	{{- end}}{{end}}

	{{- if .Description}}
	## DESCRIPTION
	{{.Description}}
	{{- end}}

	{{- if .VisibleCommands}}
	## COMMANDS
	{{ printf "" }}
	{{- template "visibleCommandTemplate" .}}
	{{- end}}

	{{- if .VisibleFlags}}
	## GLOBAL OPTIONS
	{{ printf "" }}
	{{- template "visibleFlagTemplate" .}}
	{{- end}}
`)

// commandHelpTemplate is used for a command that has no subcommands.
var commandHelpTemplate = heredoc.Doc(`
	## NAME
	{{template "helpNameTemplate" .}}

	## USAGE
	{{template "usageTemplate" .}}

	{{- if .Description}}
	## DESCRIPTION
	{{trim .Description}}
	{{- end}}

	{{- if .VisibleFlags}}
	## OPTIONS
	{{- template "visibleFlagTemplate" .}}
	{{- end}}
`)

// subcommandHelpTemplate is used for a command with more than zero subcommands.
var subcommandHelpTemplate = heredoc.Doc(`
	## NAME
	{{template "helpNameTemplate" .}}

	## USAGE
	{{if .UsageText}}{{trim .UsageText}}{{else}}{{.HelpName}} command [options]{{end}}{{if .Description}}

	## DESCRIPTION
	{{trim .Description}}{{end}}{{if .VisibleCommands}}

	## COMMANDS
	{{template "visibleCommandTemplate" .}}{{end}}{{if .VisibleFlags}}

	## OPTIONS
	{{template "visibleFlagTemplate" .}}{{end}}
`)

func init() {
	cli.FlagStringer = flagStringer
}

// flagStringer renders a flag as a level-four heading followed by its usage,
// its default and the environment variables it reads.
func flagStringer(f cli.Flag) string {
	// enforce DocGeneration interface on flags to avoid reflection
	df := f.(cli.DocGenerationFlag)

	placeholder, usage := unquoteUsage(df.GetUsage())
	if df.TakesValue() && placeholder == "" {
		placeholder = "VALUE"
	}

	// Bool flags show no default unless they have one worth stating.
	defaultValueString := ""
	if bf, ok := f.(*cli.BoolFlag); !ok || !bf.DisableDefaultText {
		if s := df.GetDefaultText(); s != "" && s != "false" {
			defaultValueString = fmt.Sprintf("\n\n(default: **%s**)", s)
		}
	}

	names := prefixedNames(df.Names(), placeholder)
	if sliceFlag, ok := f.(cli.DocGenerationSliceFlag); ok && sliceFlag.IsSliceFlag() {
		names += " (repeatable)"
	}

	text := fmt.Sprintf("#### %s\n\n%s\n", names, strings.TrimSpace(usage+defaultValueString))
	if envVars := df.GetEnvVars(); len(envVars) > 0 {
		text += fmt.Sprintf("\n(env var: $**%s**)", strings.Join(envVars, ", $"))
	}
	return text
}

// Returns the placeholder, if any, and the unquoted usage string.
func unquoteUsage(usage string) (string, string) {
	start := strings.IndexByte(usage, '`')
	if start < 0 {
		return "", usage
	}
	end := strings.IndexByte(usage[start+1:], '`')
	if end < 0 {
		return "", usage
	}
	name := usage[start+1 : start+1+end]
	return name, usage[:start] + name + usage[start+2+end:]
}

func prefixedNames(names []string, placeholder string) string {
	var parts []string
	for _, name := range names {
		if name == "" {
			continue
		}
		prefix := "--"
		if len(name) == 1 {
			prefix = "-"
		}
		part := prefix + name
		if placeholder != "" {
			part += "=<" + placeholder + ">"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}
