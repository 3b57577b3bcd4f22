package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldContentID = "content_id"
	FieldChannelID = "channel_id"
	FieldEventID   = "event_id"
	FieldMessageID = "message_id"
	FieldTenantID  = "tenant_id"
	FieldRequestID = "request_id"

	// Process / pipeline fields
	FieldComponent = "component"
	FieldAttempt   = "attempt"

	// Provisioning fields
	FieldChecksum       = "checksum"
	FieldCacheKey       = "cache_key"
	FieldClassification = "classification"
	FieldIngestRegion   = "ingest_region"
	FieldManifestPath   = "manifest_path"

	// State fields
	FieldOldStatus = "old_status"
	FieldNewStatus = "new_status"
	FieldRetries   = "retries"
)
