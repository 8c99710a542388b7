package session

import (
	"context"
	"net/url"
	"strings"
)

// LinkKind classifies what a clicked link target should do.
type LinkKind int

const (
	// LinkJump scrolls to an in-page fragment, no history entry.
	LinkJump LinkKind = iota
	// LinkInternal navigates client-side to a path within the app.
	LinkInternal
	// LinkExternal opens the target outside the app.
	LinkExternal
)

type LinkAction struct {
	Kind   LinkKind
	Target string
}

// ResolveLink decides how a link target should be followed. Hash-only targets
// jump in-page; relative paths and absolute URLs on the app's own host
// navigate client-side (reduced to path plus hash); everything else is
// external. An absolute-looking target that fails to parse falls back to a
// raw client-side navigation rather than surfacing the parse error.
func ResolveLink(href, appBaseURL string) LinkAction {
	if strings.HasPrefix(href, "#") {
		return LinkAction{Kind: LinkJump, Target: strings.TrimPrefix(href, "#")}
	}
	if strings.HasPrefix(href, "/") {
		return LinkAction{Kind: LinkInternal, Target: href}
	}

	u, err := url.Parse(href)
	if err != nil {
		return LinkAction{Kind: LinkInternal, Target: href}
	}
	if !u.IsAbs() {
		return LinkAction{Kind: LinkInternal, Target: href}
	}

	base, err := url.Parse(appBaseURL)
	if err == nil && base.Host != "" && u.Host == base.Host {
		target := u.Path
		if target == "" {
			target = "/"
		}
		if u.Fragment != "" {
			target += "#" + u.Fragment
		}
		return LinkAction{Kind: LinkInternal, Target: target}
	}
	return LinkAction{Kind: LinkExternal, Target: href}
}

// ClickLink routes a clicked link through the navigator.
func (c *Controller) ClickLink(href string) {
	if c.opts.Navigator == nil {
		return
	}
	action := ResolveLink(href, c.opts.AppBaseURL)
	switch action.Kind {
	case LinkJump:
		c.opts.Navigator.JumpTo(action.Target)
	case LinkInternal:
		c.opts.Navigator.Push(action.Target)
	case LinkExternal:
		c.opts.Navigator.OpenExternal(action.Target)
	}
}

// LinkResult is one autocomplete suggestion for the editor's link dialog.
type LinkResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchLinks performs free-text search over documents and projects the hits
// to title/url pairs.
func (c *Controller) SearchLinks(ctx context.Context, term string) ([]LinkResult, error) {
	hits, err := c.opts.Store.SearchDocuments(ctx, term, 10)
	if err != nil {
		return nil, err
	}
	results := make([]LinkResult, 0, len(hits))
	for _, hit := range hits {
		path := hit.Slug
		if path == "" {
			path = hit.ID
		}
		results = append(results, LinkResult{Title: hit.Title, URL: "/doc/" + path})
	}
	return results, nil
}
