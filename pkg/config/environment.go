package config

const (
	// EnvDsmetaRoot is the metadata root location: a local path, a file://, mem://, s3:// or sqlite:// URI.
	EnvDsmetaRoot = "DSMETA_ROOT"
	// EnvDsmetaS3Region sets the region used for s3:// locations.
	EnvDsmetaS3Region = "DSMETA_S3_REGION"
	// EnvDsmetaS3Endpoint overrides the service endpoint used for s3:// locations, e.g. for a local object store.
	EnvDsmetaS3Endpoint = "DSMETA_S3_ENDPOINT"
	// EnvDsmetaS3PathStyle selects path-style bucket addressing when set to a true value.
	EnvDsmetaS3PathStyle = "DSMETA_S3_PATH_STYLE"
	// EnvDsmetaDebug enables debug logging when set to a true value.
	EnvDsmetaDebug = "DSMETA_DEBUG"
)

// NOTE: keep this up to date or the config loader won't load them
var envKeys = []string{
	EnvDsmetaRoot,
	EnvDsmetaS3Region,
	EnvDsmetaS3Endpoint,
	EnvDsmetaS3PathStyle,
	EnvDsmetaDebug,
}
