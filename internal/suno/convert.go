package suno

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	sunohttp "github.com/handiism/suno-downloader/internal/http"
	"github.com/handiism/suno-downloader/internal/logging"
)

// Trigger asks the server to render id as WAV.
//
// It reports true on any 2xx. Network errors and 429s are retried by the
// HTTP client; any other status is a rejection and reports false. Success
// only means the job was accepted, not that the file exists yet.
func (c *Client) Trigger(ctx context.Context, token, id string) bool {
	resp, err := c.http.Do(ctx, sunohttp.Request{
		Method: http.MethodPost,
		URL:    c.endpoints.ConvertURL(id),
		Token:  token,
	})
	if err != nil {
		c.logger.Debug("convert request aborted", logging.ItemID(id), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if err := sunohttp.CheckStatus(resp); err != nil {
		c.logger.Warn("convert rejected",
			logging.ItemID(id),
			zap.Int("status", resp.StatusCode),
		)
		return false
	}
	return true
}
