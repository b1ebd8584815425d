package domain

// AssetDescriptor holds the metadata needed to deliver one downloadable
// document. The catalog is immutable and loaded once at startup; validation
// of the external ID happens at delivery time so that placeholder entries
// do not break startup.
type AssetDescriptor struct {
	Key        string
	ExternalID string
	Filename   string
	Caption    string
}

// SessionContext is the per-user conversational context owned by the
// dispatch pipeline. PendingAssetKey is set when the user references an
// asset category and cleared once a delivery attempt consumes it.
type SessionContext struct {
	PendingAssetKey string
}

// HasPendingAsset returns true if an asset request is awaiting confirmation.
func (s SessionContext) HasPendingAsset() bool {
	return s.PendingAssetKey != ""
}
