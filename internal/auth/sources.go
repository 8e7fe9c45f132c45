package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	sunohttp "github.com/handiism/suno-downloader/internal/http"
)

const (
	// SessionCookieName is the cookie holding the short-lived session JWT.
	SessionCookieName = "__session"

	// ClientCookieName is the long-lived Clerk client cookie.
	ClientCookieName = "__client"

	// DefaultClerkBaseURL is Suno's Clerk frontend API.
	DefaultClerkBaseURL = "https://clerk.suno.com"

	clerkJSVersion = "5.56.0"
)

var errNoCookie = errors.New("cookie not present")

// CookieValue returns the value of name in a Cookie header string such as
// "a=1; __session=eyJ...; b=2".
func CookieValue(header, name string) (string, bool) {
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && key == name {
			value = strings.TrimSpace(value)
			return value, value != ""
		}
	}
	return "", false
}

// CookieSource reads the session token straight out of a Cookie header.
// It is the fallback when the session API is unavailable.
type CookieSource struct {
	// Header is the raw Cookie header, e.g. copied from the browser.
	Header string
}

// Name implements Source.
func (s *CookieSource) Name() string { return "cookie" }

// Token implements Source.
func (s *CookieSource) Token(ctx context.Context) (string, error) {
	token, ok := CookieValue(s.Header, SessionCookieName)
	if !ok {
		return "", fmt.Errorf("%s: %w", SessionCookieName, errNoCookie)
	}
	return token, nil
}

// ClerkSource mints a fresh session token from the Clerk frontend API, the
// same way the web app's session.getToken() does.
//
// It needs the long-lived "__client" cookie. The active session id is looked
// up first, then a token is requested for it.
type ClerkSource struct {
	BaseURL      string
	ClientCookie string
	Client       *sunohttp.Client
}

// Name implements Source.
func (s *ClerkSource) Name() string { return "clerk" }

type clerkClientResponse struct {
	Response struct {
		LastActiveSessionID string `json:"last_active_session_id"`
		Sessions            []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"sessions"`
	} `json:"response"`
}

type clerkTokenResponse struct {
	JWT string `json:"jwt"`
}

// Token implements Source.
func (s *ClerkSource) Token(ctx context.Context) (string, error) {
	if s.ClientCookie == "" {
		return "", fmt.Errorf("%s: %w", ClientCookieName, errNoCookie)
	}
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = DefaultClerkBaseURL
	}
	header := http.Header{}
	header.Set("Cookie", ClientCookieName+"="+s.ClientCookie)

	var client clerkClientResponse
	if err := s.getJSON(ctx, sunohttp.Request{
		Method: http.MethodGet,
		URL:    base + "/v1/client?_clerk_js_version=" + clerkJSVersion,
		Header: header,
	}, &client); err != nil {
		return "", fmt.Errorf("clerk client: %w", err)
	}

	sessionID := client.Response.LastActiveSessionID
	if sessionID == "" {
		for _, sess := range client.Response.Sessions {
			if sess.Status == "active" {
				sessionID = sess.ID
				break
			}
		}
	}
	if sessionID == "" {
		return "", errors.New("clerk client: no active session")
	}

	var token clerkTokenResponse
	if err := s.getJSON(ctx, sunohttp.Request{
		Method: http.MethodPost,
		URL:    base + "/v1/client/sessions/" + url.PathEscape(sessionID) + "/tokens?_clerk_js_version=" + clerkJSVersion,
		Header: header,
	}, &token); err != nil {
		return "", fmt.Errorf("clerk token: %w", err)
	}
	return token.JWT, nil
}

func (s *ClerkSource) getJSON(ctx context.Context, r sunohttp.Request, v any) error {
	resp, err := s.Client.DoOnce(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := sunohttp.CheckStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// StaticSource returns a fixed token. Useful with tokens supplied on the
// command line.
type StaticSource string

// Name implements Source.
func (s StaticSource) Name() string { return "static" }

// Token implements Source.
func (s StaticSource) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no static token configured")
	}
	return string(s), nil
}
