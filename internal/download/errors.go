package download

import "errors"

var (
	// ErrTriggerRejected means the server refused to start a conversion.
	ErrTriggerRejected = errors.New("conversion request rejected")

	// ErrAssetNotReady means the rendered file never appeared within the
	// probe budget.
	ErrAssetNotReady = errors.New("asset not ready")

	// ErrDownloadFailed means the asset was ready but fetching or writing it
	// kept failing.
	ErrDownloadFailed = errors.New("download failed")

	// ErrCompanionFailed covers cover art, sidecar and tagging failures. It
	// never fails an item.
	ErrCompanionFailed = errors.New("companion file failed")

	// ErrEmptyCatalog means enumeration returned no items.
	ErrEmptyCatalog = errors.New("no items found")
)
