package tracing

// Span attribute keys used by dsmeta
const (
	AttrKeyDsmetaErrorCode   = "dsmeta.error.code"
	AttrKeyDsmetaDataset     = "dsmeta.dataset.name"
	AttrKeyDsmetaOperation   = "dsmeta.metadata.operation"
	AttrKeyDsmetaProvider    = "dsmeta.metadata.provider"
	AttrKeyDsmetaResultCount = "dsmeta.result.count"
)
