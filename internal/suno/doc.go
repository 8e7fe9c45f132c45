// Package suno is the client for the Suno studio API: library enumeration
// and WAV conversion requests, plus the CDN URL patterns for rendered assets.
//
// # Catalog
//
// The library feed is cursor-paginated. FetchAll walks every page and
// returns the full list at once so callers can compute totals up front:
//
//	client := suno.NewClient(hc, suno.DefaultEndpoints(), suno.DefaultCatalogConfig(), logger)
//	items, err := client.FetchAll(ctx, credentials)
//
// # Conversion
//
// WAV files are rendered on demand. Trigger starts the job; the file then
// appears at Endpoints.AssetURL after a while:
//
//	if client.Trigger(ctx, token, id) {
//	    // poll client.Endpoints().AssetURL(id, model.FormatWAV)
//	}
package suno
