/*
Package sqlprovider stores dataset metadata in a single SQLite database file.

Each dataset is one row holding the schema text and the same descriptor properties
the filesystem layout writes to descriptor.properties.
Rows have no directory, so a descriptor keeps a location only when one was given explicitly.
*/
package sqlprovider

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
	_ "modernc.org/sqlite"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/logging"
)

// Scheme selects this provider in a metadata root, as in sqlite:///var/lib/dsmeta/meta.db.
const Scheme = "sqlite"

const logTag = "metadata"

const createTable = `
CREATE TABLE IF NOT EXISTS datasets (
	name TEXT PRIMARY KEY,
	schema TEXT NOT NULL,
	properties TEXT NOT NULL
)`

type Provider struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database named by a sqlite:// location.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the location is not a sqlite:// URI naming a file
//   - dsmeta-error-metadata-access -- when the database cannot be opened or initialized
func Open(ctx context.Context, location string) (*Provider, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme != Scheme {
		return nil, dsapi.ErrorInvalidArgument("expected a sqlite:// location", [2]string{"location", location})
	}
	dbPath := filepath.FromSlash(u.Host + u.Path)
	if dbPath == "" {
		return nil, dsapi.ErrorInvalidArgument("sqlite location must name a database file", [2]string{"location", location})
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to create database directory", "", dbPath, err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to open database", "", dbPath, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, dsapi.ErrorMetadataAccess("unable to initialize database", "", dbPath, err)
	}
	return &Provider{db: db, path: dbPath}, nil
}

func (p *Provider) Close() error {
	return p.db.Close()
}

// Load reads the descriptor stored in the row for name.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name is not a valid dataset name
//   - dsmeta-error-no-such-dataset -- when there is no row for the name
//   - dsmeta-error-metadata-access -- when the row cannot be read or parsed
func (p *Provider) Load(ctx context.Context, name string) (*dsapi.Descriptor, error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug(logTag, "loading dataset metadata name:%s", name)
	var schemaText, propsText string
	err := p.db.QueryRowContext(ctx,
		`SELECT schema, properties FROM datasets WHERE name = ?`, name,
	).Scan(&schemaText, &propsText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dsapi.ErrorNoSuchDataset(name, p.path)
	}
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to query dataset", name, p.path, err)
	}
	values, err := dsapi.DecodeProperties(strings.NewReader(propsText))
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to load descriptor", name, p.path, err)
	}
	descriptor, err := dsapi.DescriptorFromProperties(values)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to parse descriptor", name, p.path, err)
	}
	if descriptor.Schema, err = dsapi.ParseSchema(schemaText); err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to load schema", name, p.path, err)
	}
	return descriptor, nil
}

// Create inserts a row for a new dataset and returns a copy of the descriptor.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name or descriptor is invalid
//   - dsmeta-error-already-exists -- when a row for the name exists
//   - dsmeta-error-metadata-access -- when the row cannot be written
func (p *Provider) Create(ctx context.Context, name string, descriptor *dsapi.Descriptor) (_ *dsapi.Descriptor, retErr error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return nil, err
	}
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug(logTag, "creating dataset metadata name:%s", name)
	schemaText, propsText, err := encodeRow(name, descriptor)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to encode descriptor", name, p.path, err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to begin transaction", name, p.path, err)
	}
	defer func() {
		if retErr != nil {
			tx.Rollback()
		}
	}()
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM datasets WHERE name = ?`, name).Scan(&one)
	switch {
	case err == nil:
		return nil, dsapi.ErrorDatasetAlreadyExists(name, p.path)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, dsapi.ErrorMetadataAccess("unable to query dataset", name, p.path, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (name, schema, properties) VALUES (?, ?, ?)`,
		name, schemaText, propsText,
	); err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to insert dataset", name, p.path, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to commit dataset", name, p.path, err)
	}
	return descriptor.Clone(), nil
}

// Update replaces the row for an existing dataset and returns a copy of the descriptor.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name or descriptor is invalid
//   - dsmeta-error-no-such-dataset -- when there is no row for the name
//   - dsmeta-error-metadata-access -- when the row cannot be written
func (p *Provider) Update(ctx context.Context, name string, descriptor *dsapi.Descriptor) (*dsapi.Descriptor, error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return nil, err
	}
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug(logTag, "updating dataset metadata name:%s", name)
	schemaText, propsText, err := encodeRow(name, descriptor)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to encode descriptor", name, p.path, err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE datasets SET schema = ?, properties = ? WHERE name = ?`,
		schemaText, propsText, name,
	)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to update dataset", name, p.path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to update dataset", name, p.path, err)
	}
	if n == 0 {
		return nil, dsapi.ErrorNoSuchDataset(name, p.path)
	}
	return descriptor.Clone(), nil
}

// Delete removes the row for name, reporting false if there was none.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name is not a valid dataset name
//   - dsmeta-error-metadata-access -- when the row cannot be deleted
func (p *Provider) Delete(ctx context.Context, name string) (bool, error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return false, err
	}
	logging.Ctx(ctx).Debug(logTag, "deleting dataset metadata name:%s", name)
	res, err := p.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return false, dsapi.ErrorMetadataAccess("unable to delete dataset", name, p.path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dsapi.ErrorMetadataAccess("unable to delete dataset", name, p.path, err)
	}
	return n > 0, nil
}

// Exists reports whether a row for name is present.
//
// Errors:
//
//   - dsmeta-error-invalid-argument -- when the name is not a valid dataset name
//   - dsmeta-error-metadata-access -- when the query fails
func (p *Provider) Exists(ctx context.Context, name string) (bool, error) {
	if err := dsapi.ValidateDatasetName(name); err != nil {
		return false, err
	}
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, dsapi.ErrorMetadataAccess("unable to query dataset", name, p.path, err)
	}
	return count > 0, nil
}

// List returns every dataset name in the table, in natural order.
//
// Errors:
//
//   - dsmeta-error-metadata-access -- when the query fails
func (p *Provider) List(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name FROM datasets`)
	if err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to list datasets", "", p.path, err)
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, dsapi.ErrorMetadataAccess("unable to list datasets", "", p.path, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, dsapi.ErrorMetadataAccess("unable to list datasets", "", p.path, err)
	}
	natsort.Sort(names)
	return names, nil
}

func encodeRow(name string, descriptor *dsapi.Descriptor) (string, string, error) {
	schemaText, err := descriptor.Schema.CanonicalText()
	if err != nil {
		return "", "", err
	}
	var buf bytes.Buffer
	if err := dsapi.EncodeProperties(&buf, "Dataset descriptor for "+name, dsapi.DescriptorProperties(descriptor)); err != nil {
		return "", "", err
	}
	return schemaText, buf.String(), nil
}
