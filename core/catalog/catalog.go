// Package catalog resolves resource requests into location descriptors by
// querying a remote translations catalog. The catalog is a JSON array of
// languages, each carrying contents (resource types) and subcontents
// (per-book entries), each layer with its own download links.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/FocuswithJustin/CedarPress/core/cache"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/model"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// DefaultURL is the production translations catalog.
const DefaultURL = "https://bibleineverylanguage.org/wp-content/themes/bb-theme-child/data/translations.json"

// Config controls the catalog client.
type Config struct {
	URL        string
	Timeout    time.Duration
	RetryCount int
	TTL        time.Duration // snapshot lifetime, 0 selects the cache default
}

// DefaultConfig returns the catalog client defaults.
func DefaultConfig() Config {
	return Config{
		URL:        DefaultURL,
		Timeout:    30 * time.Second,
		RetryCount: 2,
		TTL:        time.Hour,
	}
}

// LanguageName pairs a language code with its display name.
type LanguageName struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Client answers lookups against a cached catalog snapshot.
type Client struct {
	url    string
	client *resty.Client
	cache  *cache.CatalogCache
}

// New creates a catalog client.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	snapshots := cache.NewDefaultCatalogCache()
	if cfg.TTL > 0 {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.MaxSize = 4
		cacheCfg.TTL = cfg.TTL
		snapshots = cache.NewCatalogCache(cacheCfg)
	}
	return &Client{
		url: cfg.URL,
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetRetryCount(cfg.RetryCount),
		cache: snapshots,
	}
}

// Resolve finds the location descriptor for a resource request. A nil
// descriptor with a nil error is the not-found outcome: the language,
// type, or any usable link may be absent without that being an error.
// Book-level subcontent links are preferred over repo-level content
// links.
func (c *Client) Resolve(ctx context.Context, req model.ResourceRequest) (*model.LocationDescriptor, error) {
	data, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	lang := gjson.GetBytes(data, fmt.Sprintf(`#(code==%q)`, req.Lang))
	if !lang.Exists() {
		return nil, nil
	}
	content := lang.Get(fmt.Sprintf(`contents.#(code==%q)`, req.Type))
	if !content.Exists() {
		return nil, nil
	}

	if sub := content.Get(fmt.Sprintf(`subcontents.#(code==%q)`, req.Code)); sub.Exists() {
		if desc, ok := bestLink(sub.Get("links")); ok {
			logging.ResourceEvent("resolved", req.Spec(), "kind", string(desc.Kind), "url", desc.URL)
			return desc, nil
		}
	}
	if desc, ok := bestLink(content.Get("links")); ok {
		logging.ResourceEvent("resolved", req.Spec(), "kind", string(desc.Kind), "url", desc.URL)
		return desc, nil
	}
	return nil, nil
}

// Languages returns all language codes in catalog order.
func (c *Client) Languages(ctx context.Context) ([]string, error) {
	data, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	gjson.GetBytes(data, "#.code").ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out, nil
}

// LanguageNames returns language codes with their display names.
func (c *Client) LanguageNames(ctx context.Context) ([]LanguageName, error) {
	data, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []LanguageName
	gjson.ParseBytes(data).ForEach(func(_, lang gjson.Result) bool {
		out = append(out, LanguageName{
			Code: lang.Get("code").String(),
			Name: lang.Get("name").String(),
		})
		return true
	})
	return out, nil
}

// Types returns the resource types available for a language.
func (c *Client) Types(ctx context.Context, lang string) ([]string, error) {
	data, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	node := gjson.GetBytes(data, fmt.Sprintf(`#(code==%q).contents.#.code`, lang))
	var out []string
	node.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out, nil
}

// Codes returns the resource codes available for a language and type,
// ordered by the catalog's sort field.
func (c *Client) Codes(ctx context.Context, lang, typ string) ([]string, error) {
	data, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	node := gjson.GetBytes(data, fmt.Sprintf(`#(code==%q).contents.#(code==%q).subcontents`, lang, typ))

	type coded struct {
		code string
		sort int64
	}
	var entries []coded
	node.ForEach(func(_, sub gjson.Result) bool {
		entries = append(entries, coded{
			code: sub.Get("code").String(),
			sort: sub.Get("sort").Int(),
		})
		return true
	})
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].sort < entries[j].sort })

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.code)
	}
	return out, nil
}

// Refresh forces a refetch of the catalog snapshot.
func (c *Client) Refresh(ctx context.Context) error {
	data, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	c.cache.Put(c.url, data)
	return nil
}

func (c *Client) snapshot(ctx context.Context) ([]byte, error) {
	if data, ok := c.cache.Get(c.url); ok {
		return data, nil
	}
	data, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Put(c.url, data)
	return data, nil
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	resp, err := c.client.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, errors.NewFetch("download", c.url, err)
	}
	if resp.IsError() {
		return nil, errors.NewFetch("download", c.url, fmt.Errorf("unexpected status %s", resp.Status()))
	}
	data := resp.Body()
	if !gjson.ValidBytes(data) {
		return nil, errors.NewParse("catalog", c.url, errors.Wrap(errors.ErrParse, "invalid json"))
	}
	logging.FetchEvent("catalog", c.url, "bytes", len(data))
	return data, nil
}

// bestLink picks the most provisioning-friendly link: git repositories
// over zip archives over flat files. Links in formats the provisioner
// cannot handle (pdf, html, ...) are skipped.
func bestLink(links gjson.Result) (*model.LocationDescriptor, bool) {
	best := -1
	var desc *model.LocationDescriptor
	links.ForEach(func(_, link gjson.Result) bool {
		rawURL := link.Get("url").String()
		if rawURL == "" {
			return true
		}
		kind, ok := kindFor(link.Get("format").String(), rawURL)
		if !ok {
			return true
		}
		if r := kindRank(kind); best == -1 || r < best {
			best = r
			desc = &model.LocationDescriptor{Kind: kind, URL: rawURL}
		}
		return true
	})
	return desc, desc != nil
}

func kindFor(format, rawURL string) (model.StorageKind, bool) {
	switch strings.ToLower(format) {
	case "git", "repo":
		return model.KindGit, true
	case "zip":
		return model.KindZip, true
	case "usfm", "md", "markdown", "txt", "text":
		return model.KindFlat, true
	}
	switch {
	case strings.HasSuffix(rawURL, ".git"):
		return model.KindGit, true
	case strings.HasSuffix(rawURL, ".zip"):
		return model.KindZip, true
	case strings.HasSuffix(rawURL, ".usfm"), strings.HasSuffix(rawURL, ".txt"), strings.HasSuffix(rawURL, ".md"):
		return model.KindFlat, true
	}
	return "", false
}

func kindRank(kind model.StorageKind) int {
	switch kind {
	case model.KindGit:
		return 0
	case model.KindZip:
		return 1
	default:
		return 2
	}
}
