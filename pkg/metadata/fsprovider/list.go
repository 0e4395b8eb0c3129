package fsprovider

import (
	"context"
	"path"
	"strings"

	"github.com/facette/natsort"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/fsys"
	"github.com/warptools/dsmeta/pkg/logging"
)

// List returns the names of all datasets under the root, in natural sort order.
//
// Every directory holding a metadata directory is a dataset, named by its path below the root
// with "." between segments. Datasets may nest: "a" and "a.b" are both listed.
// The walk skips hidden entries, files, and directories whose names contain ".",
// since those could not have come from a dataset name.
// A missing root holds no datasets.
//
// Datasets created at an explicit location away from their default directory are not found here.
//
// Errors:
//
//   - dsmeta-error-metadata-access -- when a directory cannot be listed or checked
func (p *Provider) List(ctx context.Context) ([]string, error) {
	logging.Ctx(ctx).Debug(logTag, "listing datasets under %s", p.Root())
	var names []string
	err := p.walkDatasets(ctx, func(name, _ string) error {
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	natsort.Sort(names)
	return names, nil
}

// walkDatasets calls visit for every dataset under the root, with its name and directory.
//
// Errors:
//
//   - dsmeta-error-metadata-access -- when a directory cannot be listed or checked
//   - any error returned by visit
func (p *Provider) walkDatasets(ctx context.Context, visit func(name, datasetPath string) error) error {
	entries, err := p.rootFS.List(ctx, p.rootPath)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return dsapi.ErrorMetadataAccess("unable to list root directory", "", p.rootPath, err)
	}
	return p.recurseDatasetDir(ctx, p.rootPath, nil, entries, visit)
}

func (p *Provider) recurseDatasetDir(ctx context.Context, dir string, segments []string, entries []fsys.Status, visit func(name, datasetPath string) error) error {
	for _, entry := range entries {
		if !entry.IsDir || dsapi.IsHiddenEntry(entry.Name) || strings.Contains(entry.Name, dsapi.DatasetNameSeparator) {
			continue
		}
		childPath := path.Join(dir, entry.Name)
		childSegments := append(segments[:len(segments):len(segments)], entry.Name)

		isDataset, err := p.rootFS.Exists(ctx, metadataPath(childPath))
		if err != nil {
			return dsapi.ErrorMetadataAccess("unable to check for metadata directory", "", childPath, err)
		}
		if isDataset {
			if err := visit(dsapi.DatasetNameFromSegments(childSegments), childPath); err != nil {
				return err
			}
		}

		children, err := p.rootFS.List(ctx, childPath)
		if err != nil {
			if isNotExist(err) {
				// removed while we were walking
				continue
			}
			return dsapi.ErrorMetadataAccess("unable to list directory", "", childPath, err)
		}
		if err := p.recurseDatasetDir(ctx, childPath, childSegments, children, visit); err != nil {
			return err
		}
	}
	return nil
}

func sortProblems(problems []Problem) {
	names := make([]string, len(problems))
	byName := make(map[string]Problem, len(problems))
	for i, p := range problems {
		names[i] = p.Name
		byName[p.Name] = p
	}
	natsort.Sort(names)
	for i, n := range names {
		problems[i] = byName[n]
	}
}
