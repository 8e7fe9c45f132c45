// Package http provides the rate-aware HTTP client shared by every
// network-touching component.
//
// The Client in this package handles:
//   - User-Agent and bearer credential headers
//   - Indefinite retry with a fixed backoff on transport failures
//   - Indefinite retry with a longer backoff on HTTP 429
//   - HEAD probes and streamed GET downloads
//
// # Basic Usage
//
//	client := http.NewClient(http.DefaultConfig(), http.WithLogger(logger))
//
//	// Probe an asset without transferring it
//	status, size, err := client.Head(ctx, "https://cdn1.suno.ai/<id>.wav")
//
//	// Stream a body to disk
//	err = client.Stream(ctx, url, nil, func(body io.Reader) error {
//	    _, _, err := ioutils.WriteStream(ctx, path, body)
//	    return err
//	})
//
// # Waiting
//
// All waits go through a SleepFunc. Sleep is the context-aware default;
// tests substitute a recorder with WithSleep.
package http
