// Package model defines the core data structures used throughout
// suno-downloader.
//
// # Item
//
// Item is one clip from the remote library, identified by its opaque id:
//
//	item := model.Item{ID: "0f3c2a1e", Title: "Midnight Drive"}
//
// Items come from the catalog API or from a plain text list:
//
//	items, err := model.ParseItemList(file)
//
// # Naming
//
// NamingConfig turns an item into a sanitized, deterministic relative path:
//
//	cfg := &model.NamingConfig{IncludeID: true}
//	cfg.FileName(item, model.FormatWAV.Extension()) // "Midnight Drive - 0f3c2a1e.wav"
package model
