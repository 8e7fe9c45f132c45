// Package download drives the conversion and download of every item.
//
// # Pipeline
//
// The Pipeline processes items strictly one after another:
//
//  1. Skip items the progress store already lists as downloaded
//  2. Refresh the credential (forced every RefreshInterval items)
//  3. Request WAV conversion
//  4. Wait, probe the CDN until the file appears, then download it
//  5. Record the outcome and pause before the next item
//
// Sequential processing is deliberate: triggering many conversions at once
// is what gets a client rate limited.
//
// # Basic Usage
//
//	pipeline := download.NewPipeline(cfg, download.Dependencies{
//	    Credentials: cache,
//	    Catalog:     client,
//	    Converter:   client,
//	    Downloader:  download.NewExecutor(hc, endpoints, pollerCfg, logger, onProgress),
//	    Store:       store,
//	}, onProgress)
//
//	summary, err := pipeline.Run(ctx)
//	fmt.Print(summary.Report())
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	    ...
//	}
//
// # Cancellation
//
// Cancel stops the run before the next item; the current item finishes.
// Cancelling the context stops immediately and leaves the current item
// unrecorded, so it is retried on the next run.
package download
