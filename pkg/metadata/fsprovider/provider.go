/*
Package fsprovider stores dataset metadata as files under a root directory.

A dataset named "a.b.c" lives in the directory <root>/a/b/c unless it was created with an
explicit location. Its metadata sits in a hidden ".metadata" directory inside the dataset
directory, as two files:

	schema.avsc            the schema, as indented JSON
	descriptor.properties  version, format, location, partitionExpression, and extended properties

The root and every location are resolved through an fsys.Resolver, so the same layout works
on the local disk, in memory, and in an S3 bucket. A dataset's location must be on the same
filesystem as the root.
*/
package fsprovider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"

	"github.com/serum-errors/go-serum"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/fsys"
	"github.com/warptools/dsmeta/pkg/logging"
)

const (
	MetadataDirname    = ".metadata"
	SchemaFilename     = "schema.avsc"
	DescriptorFilename = "descriptor.properties"

	logTag = "metadata"
)

// Provider is safe for concurrent use as far as the underlying filesystem is.
// It keeps no state besides the root.
type Provider struct {
	resolver *fsys.Resolver
	rootFS   fsys.Filesystem
	rootPath string
}

// New opens a provider rooted at root, which may be a local path or any URI the resolver knows.
// The root directory does not need to exist yet.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the resolver is nil or the root is empty
//   - dsmeta-error-metadata-access -- when no filesystem can be obtained for the root
func New(ctx context.Context, resolver *fsys.Resolver, root string) (*Provider, error) {
	if resolver == nil {
		return nil, dsapi.ErrorInvalidArgument("resolver cannot be nil")
	}
	if root == "" {
		return nil, dsapi.ErrorInvalidArgument("root directory cannot be empty")
	}
	rootFS, rootPath, err := resolver.Resolve(ctx, root)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("cannot get filesystem for root path", "", root, err)
	}
	return &Provider{
		resolver: resolver,
		rootFS:   rootFS,
		rootPath: rootPath,
	}, nil
}

// Root is the fully qualified root directory.
func (p *Provider) Root() *url.URL {
	return fsys.Qualify(p.rootFS, p.rootPath)
}

// Filesystem is the filesystem the root lives on.
func (p *Provider) Filesystem() fsys.Filesystem {
	return p.rootFS
}

// DatasetPath is the default dataset directory for a name: one directory level per segment.
// The name is not validated.
func (p *Provider) DatasetPath(name string) string {
	return path.Join(append([]string{p.rootPath}, dsapi.DatasetNameSegments(name)...)...)
}

func metadataPath(datasetPath string) string {
	return path.Join(datasetPath, MetadataDirname)
}

// Load reads a dataset's descriptor.
//
// The returned descriptor always has a location: the stored one, or the default dataset directory.
// It always carries the filesystem URI as an extended property: the stored one,
// or the URI of the filesystem the location resolves to.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name is not a valid dataset name
//   - dsmeta-error-no-such-dataset -- when the metadata directory does not exist
//   - dsmeta-error-metadata-access -- when the metadata cannot be read or parsed
//   - dsmeta-error-metadata-access -- when the metadata version is newer than supported
func (p *Provider) Load(ctx context.Context, name string) (*dsapi.Descriptor, error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug(logTag, "loading dataset metadata name:%s", name)

	datasetPath := p.DatasetPath(name)
	metaPath := metadataPath(datasetPath)
	if err := p.checkExists(ctx, name, metaPath); err != nil {
		return nil, err
	}

	descriptorPath := path.Join(metaPath, DescriptorFilename)
	values, err := p.readProperties(ctx, descriptorPath)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to load descriptor file", name, descriptorPath, err)
	}
	descriptor, err := dsapi.DescriptorFromProperties(values)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to parse descriptor file", name, descriptorPath, err)
	}

	schemaPath := path.Join(metaPath, SchemaFilename)
	schema, err := p.readSchema(ctx, schemaPath)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to load schema file", name, schemaPath, err)
	}
	descriptor.Schema = schema
	descriptor.SchemaLocation = fsys.Qualify(p.rootFS, schemaPath)

	if descriptor.Location == nil {
		descriptor.Location = fsys.Qualify(p.rootFS, datasetPath)
	}
	if _, ok := descriptor.Property(dsapi.PropFilesystemURI); !ok {
		locationFS, _, err := p.resolver.Resolve(ctx, descriptor.Location.String())
		if err != nil {
			return nil, dsapi.ErrorMetadataAccess("cannot get filesystem for dataset location", name, descriptor.Location.String(), err)
		}
		descriptor = descriptor.WithProperty(dsapi.PropFilesystemURI, locationFS.URI().String())
	}
	return descriptor, nil
}

// Create stores a new dataset's metadata.
//
// The data location is the descriptor's location when given, else the default dataset directory.
// The metadata directory is created inside the data location.
// The returned descriptor is a copy of the input with the resolved location
// and the root filesystem URI filled in.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name is not a valid dataset name
//   - dsmeta-error-invalid-argument -- when the descriptor or its schema is missing
//   - dsmeta-error-invalid-argument -- when the location is on a different filesystem than the root
//   - dsmeta-error-already-exists -- when the metadata directory already exists
//   - dsmeta-error-metadata-access -- when the metadata cannot be written
func (p *Provider) Create(ctx context.Context, name string, descriptor *dsapi.Descriptor) (*dsapi.Descriptor, error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return nil, err
	}
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug(logTag, "creating dataset metadata name:%s", name)

	location, dataPath, err := p.dataLocation(ctx, name, descriptor)
	if err != nil {
		return nil, err
	}
	metaPath := metadataPath(dataPath)
	stored := descriptor.
		WithLocation(location).
		WithProperty(dsapi.PropFilesystemURI, p.rootFS.URI().String())

	exists, err := p.rootFS.Exists(ctx, metaPath)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to check metadata directory", name, metaPath, err)
	}
	if exists {
		return nil, dsapi.ErrorDatasetAlreadyExists(name, metaPath)
	}
	created, err := p.rootFS.MkdirAll(ctx, metaPath)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to create metadata directory", name, metaPath, err)
	}
	if !created {
		return nil, dsapi.ErrorMetadataAccess("unable to create metadata directory", name, metaPath,
			fmt.Errorf("directory %q was not created", metaPath))
	}

	if err := p.writeMetadata(ctx, name, metaPath, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Update replaces an existing dataset's metadata.
// The location resolves exactly as for Create, and the dataset must already exist there.
// The descriptor is written and returned as given: unlike Create, nothing is filled in.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name is not a valid dataset name
//   - dsmeta-error-invalid-argument -- when the descriptor or its schema is missing
//   - dsmeta-error-invalid-argument -- when the location is on a different filesystem than the root
//   - dsmeta-error-no-such-dataset -- when the metadata directory does not exist
//   - dsmeta-error-metadata-access -- when the metadata cannot be written
func (p *Provider) Update(ctx context.Context, name string, descriptor *dsapi.Descriptor) (*dsapi.Descriptor, error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return nil, err
	}
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug(logTag, "updating dataset metadata name:%s", name)

	_, dataPath, err := p.dataLocation(ctx, name, descriptor)
	if err != nil {
		return nil, err
	}
	metaPath := metadataPath(dataPath)
	if err := p.checkExists(ctx, name, metaPath); err != nil {
		return nil, err
	}
	if err := p.writeMetadata(ctx, name, metaPath, descriptor); err != nil {
		return nil, err
	}
	return descriptor, nil
}

// Delete removes a dataset's metadata directory, reporting false if there was none.
// The dataset directory itself is then removed only if it is empty; failing that is not an error.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name is not a valid dataset name
//   - dsmeta-error-metadata-access -- when the metadata directory cannot be checked or deleted
func (p *Provider) Delete(ctx context.Context, name string) (bool, error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return false, err
	}
	logging.Ctx(ctx).Debug(logTag, "deleting dataset metadata name:%s", name)

	datasetPath := p.DatasetPath(name)
	metaPath := metadataPath(datasetPath)
	exists, err := p.rootFS.Exists(ctx, metaPath)
	if err != nil {
		return false, dsapi.ErrorMetadataAccess("unable to find metadata directory", name, metaPath, err)
	}
	if !exists {
		return false, nil
	}
	deleted, err := p.rootFS.Delete(ctx, metaPath, true)
	if err != nil {
		return false, dsapi.ErrorMetadataAccess("unable to delete metadata directory", name, metaPath, err)
	}
	if !deleted {
		return false, dsapi.ErrorMetadataAccess("unable to delete metadata directory", name, metaPath,
			fmt.Errorf("directory %q was not deleted", metaPath))
	}
	if _, err := p.rootFS.Delete(ctx, datasetPath, false); err != nil {
		logging.Ctx(ctx).Debug(logTag, "keeping dataset directory %s: %s", datasetPath, err)
	}
	return true, nil
}

// Exists reports whether the dataset's metadata directory is present.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name is not a valid dataset name
//   - dsmeta-error-metadata-access -- when the check itself fails
func (p *Provider) Exists(ctx context.Context, name string) (bool, error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return false, err
	}
	metaPath := metadataPath(p.DatasetPath(name))
	exists, err := p.rootFS.Exists(ctx, metaPath)
	if err != nil {
		return false, dsapi.ErrorMetadataAccess("could not check metadata path", name, metaPath, err)
	}
	return exists, nil
}

// dataLocation resolves where a dataset's data, and so its metadata, lives.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the location is malformed, unsupported, or on another filesystem
//   - dsmeta-error-metadata-access -- when the location's filesystem cannot be obtained
func (p *Provider) dataLocation(ctx context.Context, name string, descriptor *dsapi.Descriptor) (*url.URL, string, error) {
	if descriptor.Location == nil {
		datasetPath := p.DatasetPath(name)
		return fsys.Qualify(p.rootFS, datasetPath), datasetPath, nil
	}
	location := descriptor.Location.String()
	locationFS, locationPath, err := p.resolver.Resolve(ctx, location)
	if err != nil {
		if serum.Code(err) == dsapi.ECodeInvalidArgument {
			return nil, "", err
		}
		return nil, "", dsapi.ErrorMetadataAccess("cannot get filesystem for dataset location", name, location, err)
	}
	if !fsys.Same(locationFS, p.rootFS) {
		return nil, "", dsapi.ErrorInvalidArgument("dataset location must be on the same filesystem as the root",
			[2]string{"location", location},
			[2]string{"root", p.Root().String()},
		)
	}
	return fsys.Qualify(p.rootFS, locationPath), locationPath, nil
}

// checkExists requires the metadata directory at metaPath to be present.
//
// Errors:
//
//   - dsmeta-error-no-such-dataset -- when the metadata directory is absent
//   - dsmeta-error-metadata-access -- when the check fails
func (p *Provider) checkExists(ctx context.Context, name, metaPath string) error {
	exists, err := p.rootFS.Exists(ctx, metaPath)
	if err != nil {
		return dsapi.ErrorMetadataAccess("cannot access metadata directory", name, metaPath, err)
	}
	if !exists {
		return dsapi.ErrorNoSuchDataset(name, metaPath)
	}
	return nil
}

// writeMetadata writes the schema file, then the descriptor file.
// Each file is replaced as a whole, but the pair is not:
// a failure on the second write leaves the new schema next to the old descriptor.
//
// Errors:
//
//   - dsmeta-error-metadata-access -- when either file cannot be written
func (p *Provider) writeMetadata(ctx context.Context, name, metaPath string, descriptor *dsapi.Descriptor) error {
	schemaPath := path.Join(metaPath, SchemaFilename)
	schemaText, err := descriptor.Schema.CanonicalText()
	if err != nil {
		return dsapi.ErrorMetadataAccess("unable to render schema", name, schemaPath, err)
	}
	err = p.writeFile(ctx, schemaPath, func(w io.Writer) error {
		_, err := io.WriteString(w, schemaText)
		return err
	})
	if err != nil {
		return dsapi.ErrorMetadataAccess("unable to save schema file", name, schemaPath, err)
	}

	descriptorPath := path.Join(metaPath, DescriptorFilename)
	values := dsapi.DescriptorProperties(descriptor)
	err = p.writeFile(ctx, descriptorPath, func(w io.Writer) error {
		return dsapi.EncodeProperties(w, "Dataset descriptor for "+name, values)
	})
	if err != nil {
		return dsapi.ErrorMetadataAccess("unable to save descriptor file", name, descriptorPath, err)
	}
	return nil
}

// writeFile replaces a file with whatever fill writes.
// The file is committed only if fill and the flush succeed; otherwise it is discarded.
func (p *Provider) writeFile(ctx context.Context, name string, fill func(io.Writer) error) error {
	w, err := p.rootFS.Create(ctx, name, true)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if err := fill(bw); err != nil {
		p.discard(ctx, w, name)
		return err
	}
	if err := bw.Flush(); err != nil {
		p.discard(ctx, w, name)
		return err
	}
	return w.Close()
}

func (p *Provider) discard(ctx context.Context, w io.WriteCloser, name string) {
	if err := fsys.Discard(w); err != nil {
		logging.Ctx(ctx).Debug(logTag, "cannot discard partial write of %s: %s", name, err)
	}
}

func (p *Provider) readProperties(ctx context.Context, name string) (_ map[string]string, retErr error) {
	r, err := p.rootFS.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer p.closeInto(ctx, r, name, &retErr)
	return dsapi.DecodeProperties(r)
}

func (p *Provider) readSchema(ctx context.Context, name string) (_ *dsapi.Schema, retErr error) {
	r, err := p.rootFS.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer p.closeInto(ctx, r, name, &retErr)
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return dsapi.ParseSchema(string(text))
}

// closeInto closes c, reporting its error through errp unless an earlier error is already there.
func (p *Provider) closeInto(ctx context.Context, c io.Closer, name string, errp *error) {
	err := c.Close()
	if err == nil {
		return
	}
	if *errp == nil {
		*errp = err
		return
	}
	logging.Ctx(ctx).Debug(logTag, "error closing %s after failure: %s", name, err)
}

// isNotExist reports whether a listing failed only because the directory is gone.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
