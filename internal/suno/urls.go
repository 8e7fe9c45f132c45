package suno

import (
	"net/url"
	"strings"

	"github.com/handiism/suno-downloader/internal/model"
)

// Default service endpoints.
const (
	DefaultAPIBaseURL   = "https://studio-api.prod.suno.com"
	DefaultCDNBaseURL   = "https://cdn1.suno.ai"
	DefaultImageBaseURL = "https://cdn2.suno.ai"
)

// Endpoints holds the base URLs of the API and the two CDNs.
type Endpoints struct {
	API   string
	CDN   string
	Image string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		API:   DefaultAPIBaseURL,
		CDN:   DefaultCDNBaseURL,
		Image: DefaultImageBaseURL,
	}
}

func (e Endpoints) withDefaults() Endpoints {
	def := DefaultEndpoints()
	if e.API == "" {
		e.API = def.API
	}
	if e.CDN == "" {
		e.CDN = def.CDN
	}
	if e.Image == "" {
		e.Image = def.Image
	}
	return e
}

// FeedURL is the paginated library listing.
func (e Endpoints) FeedURL() string {
	return join(e.withDefaults().API, "/api/feed/v3")
}

// ConvertURL starts server-side WAV rendering for id.
func (e Endpoints) ConvertURL(id string) string {
	return join(e.withDefaults().API, "/api/gen/"+url.PathEscape(id)+"/convert_wav/")
}

// AssetURL is where the rendered audio for id appears, e.g.
// "https://cdn1.suno.ai/<id>.wav".
func (e Endpoints) AssetURL(id string, format model.Format) string {
	return join(e.withDefaults().CDN, "/"+url.PathEscape(id)+"."+format.Extension())
}

// ImageURL is the large cover image for id.
func (e Endpoints) ImageURL(id string) string {
	return join(e.withDefaults().Image, "/image_large_"+url.PathEscape(id)+".jpeg")
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
