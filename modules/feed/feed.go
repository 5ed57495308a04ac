// Package feed provides the Feed kind, which exposes one entry of an RSS or
// Atom feed as properties.
package feed

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/manifest"
	"github.com/specialistvlad/propshell/internal/registry"
	"github.com/specialistvlad/propshell/internal/shellerr"
	"github.com/zclconf/go-cty/cty"
)

//go:embed manifest.hcl
var manifestSrc []byte

// Property and signal ids, in manifest order.
const (
	URI kind.PropID = iota
	Entries
	EntryIndex
	Title
	Published
	Summary
	Link
)

const CheckForUpdates kind.SignalID = 0

// Entry is one parsed feed item.
type Entry struct {
	Title     string
	Published string
	Summary   string
	Link      string
}

// Fetcher retrieves and parses a feed.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]Entry, error)
}

// Module registers the Feed kind. A nil Fetcher uses NewHTTPFetcher.
type Module struct {
	Fetcher Fetcher
}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) error {
	fetcher := m.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(DefaultTimeout)
	}
	return r.RegisterKind(&registry.Kind{
		Spec: manifest.MustParse("feed/manifest.hcl", manifestSrc),
		Factory: func(spec *kind.Spec, env kind.Env) (kind.Instance, error) {
			return &Feed{Values: kind.NewValues(spec), env: env, fetcher: fetcher}, nil
		},
		Claims: &registry.Claims{
			Properties: []string{"uri", "entries", "entry", "title", "published", "summary", "link"},
			Signals:    []string{"check-for-updates"},
		},
		Source: "modules/feed",
	})
}

// Feed is a live feed object.
type Feed struct {
	*kind.Values
	env     kind.Env
	fetcher Fetcher
}

// Set stores uri or entry and refreshes. If the refresh fails nothing is
// stored.
func (f *Feed) Set(ctx context.Context, p kind.PropID, v cty.Value) ([]kind.PropID, error) {
	uri, index := f.String(URI), f.Int(EntryIndex)
	switch p {
	case URI:
		uri = v.AsString()
	case EntryIndex:
		n, _ := v.AsBigFloat().Int64()
		index = n
	default:
		return nil, fmt.Errorf("%w: feed property %d is read-only", shellerr.ErrNotWritable, p)
	}

	if uri == "" {
		f.Put(p, v)
		return nil, nil
	}
	changed, err := f.refresh(ctx, uri, index)
	if err != nil {
		return nil, err
	}
	f.Put(p, v)
	return changed, nil
}

// Emit implements kind.Instance.
func (f *Feed) Emit(ctx context.Context, s kind.SignalID) ([]kind.PropID, error) {
	if s != CheckForUpdates {
		return nil, nil
	}
	uri := f.String(URI)
	if uri == "" {
		f.env.Logger.Warn("Feed has no uri; nothing to check.")
		return nil, nil
	}
	return f.refresh(ctx, uri, f.Int(EntryIndex))
}

// refresh fetches uri and commits the selected entry. Either every derived
// property is replaced or none is.
func (f *Feed) refresh(ctx context.Context, uri string, index int64) ([]kind.PropID, error) {
	f.env.Logger.Debug("Fetching feed.", "uri", uri, "entry", index)

	entries, err := f.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %w", shellerr.ErrUnavailable, uri, err)
	}
	if index >= int64(len(entries)) {
		return nil, fmt.Errorf("%w: entry %d requested but %s has %d entries", shellerr.ErrRange, index, uri, len(entries))
	}

	e := entries[index]
	f.Put(Entries, cty.NumberIntVal(int64(len(entries))))
	f.Put(Title, cty.StringVal(e.Title))
	f.Put(Published, cty.StringVal(e.Published))
	f.Put(Summary, cty.StringVal(e.Summary))
	f.Put(Link, cty.StringVal(e.Link))

	f.env.Logger.Info("Feed updated.", "uri", uri, "entries", len(entries), "title", e.Title)
	return []kind.PropID{Entries, Title, Published, Summary, Link}, nil
}

// Close releases idle connections held by the fetcher.
func (f *Feed) Close() error {
	if c, ok := f.fetcher.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	return nil
}
