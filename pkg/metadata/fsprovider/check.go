package fsprovider

import (
	"context"
	"path"

	"github.com/warptools/dsmeta/dsapi"
)

// Problem describes a dataset whose metadata directory is incomplete,
// as can be left behind by an interrupted create or update.
type Problem struct {
	Name    string
	Path    string
	Missing []string
}

// Check walks the datasets under the root and reports each one missing a metadata file.
// Datasets are visited in the same order List returns them.
//
// Errors:
//
//   - dsmeta-error-metadata-access -- when a directory cannot be listed or checked
func (p *Provider) Check(ctx context.Context) ([]Problem, error) {
	var problems []Problem
	err := p.walkDatasets(ctx, func(name, datasetPath string) error {
		metaPath := metadataPath(datasetPath)
		var missing []string
		for _, file := range []string{SchemaFilename, DescriptorFilename} {
			filePath := path.Join(metaPath, file)
			exists, err := p.rootFS.Exists(ctx, filePath)
			if err != nil {
				return dsapi.ErrorMetadataAccess("unable to check metadata file", name, filePath, err)
			}
			if !exists {
				missing = append(missing, file)
			}
		}
		if len(missing) > 0 {
			problems = append(problems, Problem{Name: name, Path: metaPath, Missing: missing})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortProblems(problems)
	return problems, nil
}

// Report converts problems into the printable document form.
func Report(problems []Problem) dsapi.CheckReport {
	report := dsapi.CheckReport{Problems: []dsapi.CheckProblem{}}
	for _, p := range problems {
		report.Problems = append(report.Problems, dsapi.CheckProblem{
			Name:    p.Name,
			Path:    p.Path,
			Missing: p.Missing,
		})
	}
	return report
}
