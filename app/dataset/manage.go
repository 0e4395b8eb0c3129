package datasetcli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"

	appbase "github.com/warptools/dsmeta/app/base"
	"github.com/warptools/dsmeta/app/base/util"
	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/logging"
	"github.com/warptools/dsmeta/pkg/metadata/fsprovider"
)

var deleteCmdDef = &cli.Command{
	Name:      "delete",
	Usage:     "Delete the metadata of a dataset",
	UsageText: "dsmeta delete <name>",
	Description: "Removes the dataset's metadata directory.  Data files are left alone; " +
		"the dataset directory itself goes only if nothing else is in it.",
	Action: action(cmdDelete),
}

var existsCmdDef = &cli.Command{
	Name:      "exists",
	Usage:     "Report whether a dataset exists",
	UsageText: "dsmeta exists <name>",
	Action:    action(cmdExists),
}

var listCmdDef = &cli.Command{
	Name:      "list",
	Usage:     "List all datasets",
	UsageText: "dsmeta list",
	Action:    action(cmdList),
}

var checkCmdDef = &cli.Command{
	Name:      "check",
	Usage:     "Find datasets with incomplete metadata",
	UsageText: "dsmeta check",
	Description: "Lists datasets whose metadata directory lacks the schema or the descriptor file, " +
		"as an interrupted create or update can leave behind.  Exits non-zero when any are found.",
	Action: action(cmdCheck),
}

func cmdDelete(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	deleted, err := util.Provider(c.Context).Delete(c.Context, name)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		appbase.SetResult(c, dsapi.Node(&dsapi.DeleteResult{Name: name, Deleted: deleted}, "DeleteResult"))
		return nil
	}
	logger := logging.Ctx(c.Context)
	if deleted {
		logger.Out("deleted %s", name)
	} else {
		logger.Out("nothing to delete for %s", name)
	}
	return nil
}

func cmdExists(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	exists, err := util.Provider(c.Context).Exists(c.Context, name)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		appbase.SetResult(c, dsapi.Node(&dsapi.ExistsResult{Name: name, Exists: exists}, "ExistsResult"))
		return nil
	}
	logging.Ctx(c.Context).Out("%t", exists)
	return nil
}

func cmdList(c *cli.Context) error {
	if c.NArg() != 0 {
		return dsapi.ErrorInvalidArgument("list takes no arguments")
	}
	names, err := util.Provider(c.Context).List(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		if names == nil {
			names = []string{}
		}
		appbase.SetResult(c, dsapi.Node(&dsapi.DatasetList{Datasets: names}, "DatasetList"))
		return nil
	}
	logger := logging.Ctx(c.Context)
	for _, name := range names {
		logger.Out("%s", name)
	}
	return nil
}

var (
	problemStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func cmdCheck(c *cli.Context) error {
	if c.NArg() != 0 {
		return dsapi.ErrorInvalidArgument("check takes no arguments")
	}
	checker, err := util.Checker(c.Context)
	if err != nil {
		return err
	}
	problems, err := checker.Check(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		report := fsprovider.Report(problems)
		appbase.SetResult(c, dsapi.Node(&report, "CheckReport"))
	} else {
		logger := logging.Ctx(c.Context)
		for _, p := range problems {
			logger.Out("%s %s (%s) missing %v", problemStyle.Render("incomplete"), p.Name, p.Path, p.Missing)
		}
		if len(problems) == 0 {
			logger.Out("%s", okStyle.Render("all datasets have complete metadata"))
		}
	}
	if len(problems) > 0 {
		return cli.Exit(fmt.Sprintf("%d dataset(s) with incomplete metadata", len(problems)), 1)
	}
	return nil
}
