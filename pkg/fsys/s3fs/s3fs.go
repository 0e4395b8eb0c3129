/*
Package s3fs presents an S3 bucket as an fsys.Filesystem.

Paths map onto object keys by dropping the leading slash.
Directories are zero-length marker objects whose key ends in "/",
so an empty dataset directory survives between calls.
A directory also exists implicitly while any key lives under its prefix.
*/
package s3fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithylogging "github.com/aws/smithy-go/logging"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/fsys"
	"github.com/warptools/dsmeta/pkg/logging"
)

const Scheme = "s3"

// deleteBatchSize is the most keys a single DeleteObjects call accepts.
const deleteBatchSize = 1000

// Client is the subset of the S3 API this package calls.
// *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Config selects how clients reach the service.
// An empty Endpoint uses the AWS default for the region.
type Config struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

type FS struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	uri      *url.URL
}

var _ fsys.Filesystem = (*FS)(nil)

func New(client Client, bucket string) *FS {
	return &FS{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		uri:      &url.URL{Scheme: Scheme, Host: bucket, Path: "/"},
	}
}

// NewClient builds an S3 client from the default credential chain and the given config.
// When the logger in ctx is verbose, the SDK logs retries through it.
//
// Errors:
//
//   - dsmeta-error-config -- when the AWS configuration cannot be loaded
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: cfg.PathStyle,
				SigningRegion:     cfg.Region,
			}, nil
		})
		opts = append(opts, config.WithEndpointResolverWithOptions(resolver))
	}
	if logger := logging.Ctx(ctx); logger.IsVerbose() {
		opts = append(opts,
			config.WithLogger(smithylogging.NewStandardLogger(logger.InfoWriter("s3"))),
			config.WithClientLogMode(aws.LogRetries),
		)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, dsapi.ErrorConfig("s3", err.Error())
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// Factory returns an fsys.Factory that opens one bucket per URI authority.
func Factory(cfg Config) fsys.Factory {
	return func(ctx context.Context, uri *url.URL) (fsys.Filesystem, error) {
		if uri.Host == "" {
			return nil, dsapi.ErrorInvalidArgument("s3 location must name a bucket", [2]string{"uri", uri.String()})
		}
		client, err := NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return New(client, uri.Host), nil
	}
}

func (f *FS) URI() *url.URL {
	u := *f.uri
	return &u
}

func objectKey(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func dirPrefix(name string) string {
	key := objectKey(name)
	if key == "" {
		return ""
	}
	return key + "/"
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var responseError *awshttp.ResponseError
	return errors.As(err, &responseError) && responseError.ResponseError.HTTPStatusCode() == http.StatusNotFound
}

func (f *FS) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (f *FS) Exists(ctx context.Context, name string) (bool, error) {
	key := objectKey(name)
	if key == "" {
		return true, nil
	}
	if ok, err := f.objectExists(ctx, key); ok || err != nil {
		return ok, err
	}
	out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(f.bucket),
		Prefix:    aws.String(key + "/"),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func (f *FS) MkdirAll(ctx context.Context, name string) (bool, error) {
	key := objectKey(name)
	if key == "" {
		return true, nil
	}
	prefix := ""
	for _, seg := range strings.Split(key, "/") {
		prefix += seg + "/"
		_, err := f.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(f.bucket),
			Key:    aws.String(prefix),
			Body:   bytes.NewReader(nil),
		})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func (f *FS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(objectKey(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		return nil, err
	}
	return out.Body, nil
}

func (f *FS) Create(ctx context.Context, name string, overwrite bool) (io.WriteCloser, error) {
	key := objectKey(name)
	if !overwrite {
		exists, err := f.objectExists(ctx, key)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrExist}
		}
	}
	return &uploadWriter{ctx: ctx, fs: f, key: key}, nil
}

// uploadWriter buffers the whole object and uploads it on Close.
// S3 puts are atomic per object, so readers see either the old or the new content.
type uploadWriter struct {
	ctx  context.Context
	fs   *FS
	key  string
	buf  bytes.Buffer
	done bool
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *uploadWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	_, err := w.fs.uploader.Upload(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.fs.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	return err
}

func (w *uploadWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}

func (f *FS) Delete(ctx context.Context, name string, recursive bool) (bool, error) {
	exists, err := f.Exists(ctx, name)
	if err != nil || !exists {
		return false, err
	}
	key := objectKey(name)
	prefix := dirPrefix(name)
	if !recursive {
		entries, err := f.List(ctx, name)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		if len(entries) > 0 {
			return false, &fs.PathError{Op: "delete", Path: name, Err: fsys.ErrNotEmpty}
		}
		return true, f.deleteKeys(ctx, []string{key, prefix})
	}

	keys := []string{key}
	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(f.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return true, f.deleteKeys(ctx, keys)
}

func (f *FS) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			if k == "" {
				continue
			}
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		if len(ids) == 0 {
			continue
		}
		out, err := f.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(f.bucket),
			Delete: &types.Delete{Objects: ids},
		})
		if err != nil {
			return err
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return errors.New("s3: cannot delete " + aws.ToString(e.Key) + ": " + aws.ToString(e.Message))
		}
	}
	return nil
}

func (f *FS) List(ctx context.Context, name string) ([]fsys.Status, error) {
	prefix := dirPrefix(name)
	found := prefix == ""
	var result []fsys.Status
	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(f.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, cp := range page.CommonPrefixes {
			found = true
			child := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			result = append(result, fsys.Status{Name: child, IsDir: true})
		}
		for _, obj := range page.Contents {
			found = true
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			result = append(result, fsys.Status{Name: strings.TrimPrefix(key, prefix)})
		}
	}
	if !found {
		return nil, &fs.PathError{Op: "list", Path: name, Err: fs.ErrNotExist}
	}
	return result, nil
}
