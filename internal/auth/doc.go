// Package auth provides the bearer credential used against the Suno API.
//
// # Credential Cache
//
// Cache holds one in-memory credential and refreshes it from an ordered
// list of sources:
//
//	cache := auth.NewCache(5*time.Minute, []auth.Source{
//	    &auth.ClerkSource{ClientCookie: clientCookie, Client: client},
//	    &auth.CookieSource{Header: cookieHeader},
//	})
//
//	cred, err := cache.Get(ctx, false) // cached while fresh
//	cred, err = cache.Get(ctx, true)   // always asks the sources
//
// A credential is stale once it is older than the TTL or, for JWTs, close to
// its exp claim. When every source fails Get returns ErrNoCredential.
//
// Credentials are never written to disk.
package auth
