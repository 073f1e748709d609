package activitypub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mammutbb/mammut/domain"
	"github.com/mammutbb/mammut/util"
)

const testDomain = "local.test"

// testConf returns a config pointing at the test instance domain, with a
// high fetch rate so rate limiting never slows the suite down.
func testConf() *util.AppConfig {
	c := &util.AppConfig{}
	c.Conf.SslDomain = testDomain
	c.Conf.SiteName = "mammut-test"
	c.Conf.FallbackCategory = "-1"
	c.Conf.FetchTimeoutSecs = 5
	c.Conf.FetchRatePerSec = 1000
	c.Conf.ActorCacheMins = 60
	c.Conf.SentCacheMins = 10
	return c
}

// newTestService wires a Service, Resolver and Outbox against a mock
// database and a mock HTTP client.
func newTestService() (*Service, *MockDatabase, *MockHTTPClient) {
	mockDB := NewMockDatabase()
	client := NewMockHTTPClient()
	conf := testConf()
	resolver := NewResolverWithClient(mockDB, conf, client)
	return NewService(mockDB, resolver, conf), mockDB, client
}

// MockHTTPClient is a mock HTTP client for testing. Each Do call gets a
// fresh response body, so the same URL can be fetched repeatedly.
type MockHTTPClient struct {
	mu sync.Mutex

	// Responses maps request URL to canned response data
	Responses map[string]mockResponse
	// Errors maps request URL to error
	Errors map[string]error
	// Requests stores all received requests
	Requests []*http.Request
	// latency delays every Do call, to widen fetch windows in
	// concurrency tests
	latency time.Duration
}

type mockResponse struct {
	statusCode  int
	contentType string
	body        []byte
}

func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{
		Responses: make(map[string]mockResponse),
		Errors:    make(map[string]error),
	}
}

// SetLatency makes every subsequent request take at least d.
func (c *MockHTTPClient) SetLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency = d
}

// Do implements the HTTPClient interface
func (c *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	if d := c.latency; d > 0 {
		c.mu.Unlock()
		time.Sleep(d)
		c.mu.Lock()
	}
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)

	url := req.URL.String()
	if err, ok := c.Errors[url]; ok {
		return nil, err
	}
	if resp, ok := c.Responses[url]; ok {
		header := make(http.Header)
		if resp.contentType != "" {
			header.Set("Content-Type", resp.contentType)
		}
		return &http.Response{
			StatusCode: resp.statusCode,
			Header:     header,
			Body:       io.NopCloser(bytes.NewReader(resp.body)),
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader([]byte("not found"))),
	}, nil
}

// SetJSONResponse registers an ActivityPub JSON response for a URL.
func (c *MockHTTPClient) SetJSONResponse(url string, statusCode int, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses[url] = mockResponse{statusCode: statusCode, contentType: "application/activity+json", body: body}
	return nil
}

// SetResponse registers a raw response for a URL.
func (c *MockHTTPClient) SetResponse(url string, statusCode int, contentType string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses[url] = mockResponse{statusCode: statusCode, contentType: contentType, body: body}
}

// SetError makes a URL fail with an error.
func (c *MockHTTPClient) SetError(url string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors[url] = err
}

// RequestCount returns how many requests hit the given URL.
func (c *MockHTTPClient) RequestCount(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, req := range c.Requests {
		if req.URL.String() == url {
			n++
		}
	}
	return n
}

// RegisterPerson publishes a Person actor document on the mock network
// and returns its id.
func (c *MockHTTPClient) RegisterPerson(host string, name string) (string, *domain.ActorDocument) {
	doc := personDoc(host, name)
	if err := c.SetJSONResponse(doc.ID, http.StatusOK, doc); err != nil {
		panic(err)
	}
	return doc.ID, doc
}

// RegisterGroup publishes a Group actor document on the mock network.
func (c *MockHTTPClient) RegisterGroup(host string, name string) (string, *domain.ActorDocument) {
	doc := groupDoc(host, name)
	if err := c.SetJSONResponse(doc.ID, http.StatusOK, doc); err != nil {
		panic(err)
	}
	return doc.ID, doc
}

// RegisterNote publishes a Note object on the mock network.
func (c *MockHTTPClient) RegisterNote(doc *domain.ObjectDocument) {
	if err := c.SetJSONResponse(doc.ID, http.StatusOK, doc); err != nil {
		panic(err)
	}
}

func personDoc(host string, name string) *domain.ActorDocument {
	id := fmt.Sprintf("https://%s/user/%s", host, name)
	return &domain.ActorDocument{
		ID:                id,
		Type:              "Person",
		Name:              name,
		PreferredUsername: name,
		URL:               id,
		Inbox:             id + "/inbox",
		Outbox:            id + "/outbox",
		Icon:              &domain.Image{Type: "Image", MediaType: "image/png", URL: fmt.Sprintf("https://%s/avatars/%s.png", host, name)},
		PublicKey:         &domain.PublicKey{ID: id + "#main-key", Owner: id, PublicKeyPem: "-----BEGIN PUBLIC KEY-----\ntest\n-----END PUBLIC KEY-----"},
	}
}

func groupDoc(host string, name string) *domain.ActorDocument {
	id := fmt.Sprintf("https://%s/c/%s", host, name)
	return &domain.ActorDocument{
		ID:                id,
		Type:              "Group",
		Name:              name + " community",
		PreferredUsername: name,
		Summary:           "a test community",
		Inbox:             id + "/inbox",
		Outbox:            id + "/outbox",
	}
}

func noteDoc(host string, slug string, author string, to []string, cc []string) *domain.ObjectDocument {
	return &domain.ObjectDocument{
		ID:           fmt.Sprintf("https://%s/note/%s", host, slug),
		Type:         "Note",
		AttributedTo: author,
		Content:      "<p>hello from " + slug + "</p>",
		To:           to,
		Cc:           cc,
		Published:    time.Now().UTC().Format(time.RFC3339),
	}
}
