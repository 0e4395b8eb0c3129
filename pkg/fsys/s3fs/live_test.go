package s3fs

import (
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"github.com/warptools/dsmeta/dsapi"
	"github.com/warptools/dsmeta/pkg/config"
	"github.com/warptools/dsmeta/pkg/fsys"
	"github.com/warptools/dsmeta/pkg/metadata/fsprovider"
	"github.com/warptools/dsmeta/pkg/testutil"
)

// envTestBucket names a bucket the live test may write to.
const envTestBucket = "DSMETA_TEST_S3_BUCKET"

// TestLiveEndpoint runs the provider against a real object store, such as a local minio.
// It needs DSMETA_S3_ENDPOINT and DSMETA_TEST_S3_BUCKET, and is skipped with -testutil.offline.
func TestLiveEndpoint(t *testing.T) {
	if *testutil.FlagOffline {
		t.Skip("skipping test", t.Name(), "due to offline flag")
	}
	endpoint, bucket := os.Getenv(config.EnvDsmetaS3Endpoint), os.Getenv(envTestBucket)
	if endpoint == "" || bucket == "" {
		t.Skipf("set %s and %s to run against a live object store", config.EnvDsmetaS3Endpoint, envTestBucket)
	}
	ctx := testutil.Context(t)
	cfg := Config{Region: os.Getenv(config.EnvDsmetaS3Region), Endpoint: endpoint, PathStyle: true}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client, err := NewClient(ctx, cfg)
	qt.Assert(t, err, qt.IsNil)
	prefix := "dsmeta-test/" + uuid.NewString()
	t.Cleanup(func() {
		_, err := New(client, bucket).Delete(ctx, prefix, true)
		if err != nil {
			t.Logf("cleanup of %s failed: %s", prefix, err)
		}
	})

	resolver := fsys.NewResolver()
	resolver.Register(Scheme, Factory(cfg))
	p, err := fsprovider.New(ctx, resolver, "s3://"+bucket+"/"+prefix)
	qt.Assert(t, err, qt.IsNil)

	d := &dsapi.Descriptor{Schema: dsapi.MustParseSchema(`{"type": "record", "name": "Ping", "fields": [{"name": "at", "type": "long"}]}`)}
	created, err := p.Create(ctx, "probe.ping", d)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, created.Location.String(), qt.Equals, "s3://"+bucket+"/"+prefix+"/probe/ping")

	loaded, err := p.Load(ctx, "probe.ping")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, loaded.Schema.Equal(d.Schema), qt.IsTrue)

	names, err := p.List(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, names, qt.DeepEquals, []string{"probe.ping"})

	deleted, err := p.Delete(ctx, "probe.ping")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, deleted, qt.IsTrue)
	exists, err := p.Exists(ctx, "probe.ping")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, exists, qt.IsFalse)
}
