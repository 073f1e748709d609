package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mammutbb/mammut/domain"
	"github.com/mammutbb/mammut/util"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const acceptHeader = `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`

// Resolution is the outcome of resolving an actor id or handle. Local
// identifiers never leave the process: Doc stays nil and LocalUID or
// LocalCID carries the local entity instead.
type Resolution struct {
	Local    bool
	LocalUID string
	LocalCID string
	Doc      *domain.ActorDocument
}

// Resolver turns ids and handles into ActivityPub documents. Fetched
// documents are cached under an epoch-prefixed key; bumping the epoch
// invalidates every cached entry at once without walking the cache.
type Resolver struct {
	db      Database
	conf    *util.AppConfig
	client  HTTPClient
	cache   *cache.Cache
	group   singleflight.Group
	limiter *rate.Limiter
	epoch   atomic.Uint64
}

func NewResolver(database Database, conf *util.AppConfig) *Resolver {
	return NewResolverWithClient(database, conf, NewDefaultHTTPClient(time.Duration(conf.Conf.FetchTimeoutSecs)*time.Second))
}

func NewResolverWithClient(database Database, conf *util.AppConfig, client HTTPClient) *Resolver {
	ttl := time.Duration(conf.Conf.ActorCacheMins) * time.Minute
	return &Resolver{
		db:      database,
		conf:    conf,
		client:  client,
		cache:   cache.New(ttl, 2*ttl),
		limiter: rate.NewLimiter(rate.Limit(conf.Conf.FetchRatePerSec), conf.Conf.FetchRatePerSec*2),
	}
}

func (r *Resolver) cacheKey(uri string) string {
	return fmt.Sprintf("%d;%s", r.epoch.Load(), uri)
}

// BumpEpoch invalidates every cached document. Existing entries age out of
// the underlying cache on their own.
func (r *Resolver) BumpEpoch() {
	r.epoch.Add(1)
}

// ResetCache drops all cached documents immediately.
func (r *Resolver) ResetCache() {
	r.cache.Flush()
	r.epoch.Add(1)
}

// Prime places an actor document in the cache, as if it had just been
// fetched from its origin.
func (r *Resolver) Prime(doc *domain.ActorDocument) {
	r.cache.Set(r.cacheKey(doc.ID), doc, cache.DefaultExpiration)
}

// PrimeObject places an object document in the cache.
func (r *Resolver) PrimeObject(doc *domain.ObjectDocument) {
	r.cache.Set(r.cacheKey(doc.ID), doc, cache.DefaultExpiration)
}

// Resolve takes an actor id (https URI) or a handle (user@host, with or
// without a leading @ or acct:) and returns either the local entity it
// refers to or the fetched remote actor document.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Resolution, error) {
	if id == "" {
		return nil, fmt.Errorf("resolve: empty id")
	}
	if !strings.HasPrefix(id, "http://") && !strings.HasPrefix(id, "https://") {
		return r.resolveHandle(ctx, id)
	}
	if res, ok := r.resolveLocalURI(id); ok {
		return res, nil
	}
	doc, err := r.fetchActor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Resolution{Doc: doc}, nil
}

// ResolveObject fetches an object document by id. Local object ids are
// rejected; callers read those straight from the database.
func (r *Resolver) ResolveObject(ctx context.Context, id string) (*domain.ObjectDocument, error) {
	if id == "" {
		return nil, fmt.Errorf("resolve object: empty id")
	}
	if r.isLocalOrigin(id) {
		return nil, fmt.Errorf("resolve object: %s is local", id)
	}
	key := r.cacheKey(id)
	if cached, ok := r.cache.Get(key); ok {
		if doc, ok := cached.(*domain.ObjectDocument); ok {
			return doc, nil
		}
	}
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		body, err := r.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		var doc domain.ObjectDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("resolve object %s: %w", id, err)
		}
		if doc.ID == "" || doc.Type == "" {
			return nil, fmt.Errorf("resolve object %s: incomplete document", id)
		}
		r.cache.Set(key, &doc, cache.DefaultExpiration)
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ObjectDocument), nil
}

func (r *Resolver) fetchActor(ctx context.Context, id string) (*domain.ActorDocument, error) {
	key := r.cacheKey(id)
	if cached, ok := r.cache.Get(key); ok {
		if doc, ok := cached.(*domain.ActorDocument); ok {
			return doc, nil
		}
	}
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		body, err := r.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		var doc domain.ActorDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("resolve actor %s: %w", id, err)
		}
		if doc.ID == "" || doc.Type == "" || doc.Inbox == "" {
			return nil, fmt.Errorf("resolve actor %s: incomplete document", id)
		}
		r.cache.Set(key, &doc, cache.DefaultExpiration)
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ActorDocument), nil
}

func (r *Resolver) fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", util.Name+"/1.0 ActivityPub")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", uri, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !isJSONContentType(ct) {
		return nil, fmt.Errorf("fetch %s: unexpected content type %q", uri, ct)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func isJSONContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "application/activity+json") ||
		strings.Contains(ct, "application/ld+json") ||
		strings.Contains(ct, "application/json")
}

// resolveLocalURI recognises this instance's own actor URIs so they are
// never fetched over the wire.
func (r *Resolver) resolveLocalURI(id string) (*Resolution, bool) {
	if !r.isLocalOrigin(id) {
		return nil, false
	}
	u, err := url.Parse(id)
	if err != nil {
		return nil, false
	}
	path := strings.Trim(u.Path, "/")
	switch {
	case path == "" || path == "actor":
		return &Resolution{Local: true}, true
	case strings.HasPrefix(path, "uid/"):
		return &Resolution{Local: true, LocalUID: strings.TrimPrefix(path, "uid/")}, true
	case strings.HasPrefix(path, "category/"):
		return &Resolution{Local: true, LocalCID: strings.TrimPrefix(path, "category/")}, true
	}
	return &Resolution{Local: true}, true
}

func (r *Resolver) isLocalOrigin(id string) bool {
	u, err := url.Parse(id)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.conf.Conf.SslDomain)
}

func (r *Resolver) resolveHandle(ctx context.Context, handle string) (*Resolution, error) {
	name, host, ok := util.ParseHandle(handle)
	if !ok {
		return nil, fmt.Errorf("resolve handle: malformed handle %q", handle)
	}
	if strings.EqualFold(host, r.conf.Conf.SslDomain) {
		err, acc := r.db.ReadAccountByUsername(name)
		if err != nil {
			return nil, fmt.Errorf("resolve handle %s: %w", handle, err)
		}
		return &Resolution{Local: true, LocalUID: acc.UID}, nil
	}
	id, err := r.webfinger(ctx, name, host)
	if err != nil {
		return nil, err
	}
	doc, err := r.fetchActor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Resolution{Doc: doc}, nil
}

type webfingerResponse struct {
	Subject string `json:"subject"`
	Links   []struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"links"`
}

func (r *Resolver) webfinger(ctx context.Context, name string, host string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("https://%s/.well-known/webfinger?resource=%s",
		host, url.QueryEscape("acct:"+name+"@"+host))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/jrd+json, application/json")
	req.Header.Set("User-Agent", util.Name+"/1.0 ActivityPub")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webfinger %s@%s: %w", name, host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webfinger %s@%s: unexpected status %d", name, host, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<18))
	if err != nil {
		return "", err
	}
	var wf webfingerResponse
	if err := json.Unmarshal(body, &wf); err != nil {
		return "", fmt.Errorf("webfinger %s@%s: %w", name, host, err)
	}
	for _, link := range wf.Links {
		if link.Rel == "self" && isJSONContentType(link.Type) && link.Href != "" {
			return link.Href, nil
		}
	}
	log.Printf("webfinger %s@%s returned no self link", name, host)
	return "", fmt.Errorf("webfinger %s@%s: no actor link", name, host)
}
