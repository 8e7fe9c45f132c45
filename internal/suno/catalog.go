package suno

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/handiism/suno-downloader/internal/auth"
	sunohttp "github.com/handiism/suno-downloader/internal/http"
	"github.com/handiism/suno-downloader/internal/logging"
	"github.com/handiism/suno-downloader/internal/model"
	"github.com/handiism/suno-downloader/internal/suno/dto"
)

// ErrCatalogPage is returned (and logged) when a feed page cannot be read.
// FetchAll retries such pages until the context ends.
var ErrCatalogPage = errors.New("catalog page failed")

// Credentials supplies bearer tokens. *auth.Cache implements it.
type Credentials interface {
	Get(ctx context.Context, forceRefresh bool) (auth.Credential, error)
}

// CatalogConfig controls enumeration.
type CatalogConfig struct {
	// PageDelay is the pause between successful page fetches.
	PageDelay time.Duration

	// RetryDelay is the pause before re-requesting a page that failed.
	RetryDelay time.Duration

	// Skip lists statuses that are left out of the result.
	Skip model.StatusSet
}

// DefaultCatalogConfig skips trashed and failed generations.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		PageDelay:  3 * time.Second,
		RetryDelay: 10 * time.Second,
		Skip:       model.NewStatusSet("trashed", "error", "failed"),
	}
}

// PageInfo describes one fetched page.
type PageInfo struct {
	Page  int
	Clips int
	Kept  int
	Total int
}

// Client talks to the Suno studio API.
type Client struct {
	http      *sunohttp.Client
	endpoints Endpoints
	cfg       CatalogConfig
	logger    *zap.Logger

	// OnPage, if set, is called after every successful page.
	OnPage func(PageInfo)
}

// NewClient creates a Client. A nil logger disables logging.
func NewClient(hc *sunohttp.Client, endpoints Endpoints, cfg CatalogConfig, logger *zap.Logger) *Client {
	return &Client{
		http:      hc,
		endpoints: endpoints,
		cfg:       cfg,
		logger:    logging.OrNop(logger),
	}
}

// Endpoints returns the URLs the client uses.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints.withDefaults()
}

// FetchAll enumerates the whole library, following next_cursor until
// has_more is false.
//
// Items whose status is in the skip set are dropped, as are ids already
// returned by an earlier page. Failed pages are
// retried after RetryDelay; only a credential failure or ctx ending stops
// the loop early. A 401 or 403 forces a credential refresh before the retry.
func (c *Client) FetchAll(ctx context.Context, creds Credentials) ([]model.Item, error) {
	var (
		items  []model.Item
		cursor string
		page   = 1
		force  bool
		seen   = make(map[string]struct{})
	)
	sleep := c.http.Sleeper()

	for {
		cred, err := creds.Get(ctx, force)
		if err != nil {
			return nil, err
		}
		force = false

		resp, status, err := c.fetchPage(ctx, cred.Token, page, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("feed page failed, retrying",
				zap.Int("page", page),
				zap.Duration("backoff", c.cfg.RetryDelay),
				zap.Error(err),
			)
			force = status == http.StatusUnauthorized || status == http.StatusForbidden
			if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
				return nil, err
			}
			continue
		}

		kept := 0
		for i := range resp.Clips {
			item := resp.Clips[i].ToItem()
			if item.ID == "" || c.cfg.Skip.Contains(item.Status) {
				continue
			}
			// clips can shift between pages while we paginate
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			items = append(items, item)
			kept++
		}

		c.logger.Debug("feed page",
			zap.Int("page", page),
			zap.Int("clips", len(resp.Clips)),
			zap.Int("kept", kept),
			zap.Int("total", len(items)),
		)
		if c.OnPage != nil {
			c.OnPage(PageInfo{Page: page, Clips: len(resp.Clips), Kept: kept, Total: len(items)})
		}

		if !resp.HasMore {
			break
		}
		if resp.NextCursor == "" {
			c.logger.Warn("feed reported more pages without a cursor, stopping", zap.Int("page", page))
			break
		}
		cursor = resp.NextCursor
		page++

		if err := sleep(ctx, c.cfg.PageDelay); err != nil {
			return nil, err
		}
	}

	return items, nil
}

// fetchPage returns the decoded page, or an error wrapping ErrCatalogPage
// together with the HTTP status (0 if none was received).
func (c *Client) fetchPage(ctx context.Context, token string, page int, cursor string) (*dto.FeedResponse, int, error) {
	resp, err := c.http.Do(ctx, sunohttp.Request{
		Method: http.MethodPost,
		URL:    c.endpoints.FeedURL(),
		Token:  token,
		JSON:   dto.FeedRequest{Page: 1, Cursor: cursor},
	})
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if err := sunohttp.CheckStatus(resp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: page %d: %w", ErrCatalogPage, page, err)
	}

	var feed dto.FeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: page %d: decode: %w", ErrCatalogPage, page, err)
	}
	return &feed, resp.StatusCode, nil
}
