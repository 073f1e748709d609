package activitypub

import (
	"context"
	"net/http"
	"testing"

	"github.com/mammutbb/mammut/domain"
)

func TestResolveRemoteActor(t *testing.T) {
	service, _, client := newTestService()
	id, doc := client.RegisterPerson("remote.example", "alice")

	res, err := service.resolver.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Local {
		t.Error("remote actor resolved as local")
	}
	if res.Doc == nil || res.Doc.ID != doc.ID {
		t.Errorf("expected doc for %s, got %+v", doc.ID, res.Doc)
	}
	if res.Doc.Kind() != domain.KindPerson {
		t.Errorf("expected Person, got %s", res.Doc.Kind())
	}
}

func TestResolveCachesDocuments(t *testing.T) {
	service, _, client := newTestService()
	id, _ := client.RegisterPerson("remote.example", "alice")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := service.resolver.Resolve(ctx, id); err != nil {
			t.Fatalf("resolve %d failed: %v", i, err)
		}
	}
	if got := client.RequestCount(id); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestBumpEpochInvalidatesCache(t *testing.T) {
	service, _, client := newTestService()
	id, _ := client.RegisterPerson("remote.example", "alice")
	ctx := context.Background()

	if _, err := service.resolver.Resolve(ctx, id); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	service.resolver.BumpEpoch()
	if _, err := service.resolver.Resolve(ctx, id); err != nil {
		t.Fatalf("resolve after bump failed: %v", err)
	}
	if got := client.RequestCount(id); got != 2 {
		t.Errorf("expected refetch after epoch bump, got %d fetches", got)
	}
}

func TestResetCacheInvalidatesImmediately(t *testing.T) {
	service, _, client := newTestService()
	id, _ := client.RegisterPerson("remote.example", "alice")
	ctx := context.Background()

	if _, err := service.resolver.Resolve(ctx, id); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	service.resolver.ResetCache()
	if _, err := service.resolver.Resolve(ctx, id); err != nil {
		t.Fatalf("resolve after reset failed: %v", err)
	}
	if got := client.RequestCount(id); got != 2 {
		t.Errorf("expected refetch after reset, got %d fetches", got)
	}
}

func TestResolveLocalURIs(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		uri     string
		wantUID string
		wantCID string
	}{
		{"https://" + testDomain + "/uid/7", "7", ""},
		{"https://" + testDomain + "/category/3", "", "3"},
		{"https://" + testDomain, "", ""},
		{"https://" + testDomain + "/actor", "", ""},
	}
	for _, tc := range tests {
		res, err := service.resolver.Resolve(ctx, tc.uri)
		if err != nil {
			t.Errorf("resolve %s failed: %v", tc.uri, err)
			continue
		}
		if !res.Local {
			t.Errorf("%s should resolve as local", tc.uri)
		}
		if res.LocalUID != tc.wantUID || res.LocalCID != tc.wantCID {
			t.Errorf("%s: got uid=%q cid=%q, want uid=%q cid=%q",
				tc.uri, res.LocalUID, res.LocalCID, tc.wantUID, tc.wantCID)
		}
		if res.Doc != nil {
			t.Errorf("%s: local resolution must not carry a document", tc.uri)
		}
	}
}

func TestResolveLocalHandle(t *testing.T) {
	service, mockDB, client := newTestService()
	mockDB.AddAccount(&domain.Account{UID: "42", Username: "bob"})

	res, err := service.resolver.Resolve(context.Background(), "bob@"+testDomain)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !res.Local || res.LocalUID != "42" {
		t.Errorf("expected local uid 42, got %+v", res)
	}
	if len(client.Requests) != 0 {
		t.Errorf("local handle resolution must not hit the network, saw %d requests", len(client.Requests))
	}
}

func TestResolveRemoteHandleViaWebfinger(t *testing.T) {
	service, _, client := newTestService()
	id, _ := client.RegisterPerson("remote.example", "alice")
	client.SetResponse(
		"https://remote.example/.well-known/webfinger?resource=acct%3Aalice%40remote.example",
		http.StatusOK,
		"application/jrd+json",
		[]byte(`{"subject":"acct:alice@remote.example","links":[{"rel":"self","type":"application/activity+json","href":"`+id+`"}]}`),
	)

	res, err := service.resolver.Resolve(context.Background(), "alice@remote.example")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Local || res.Doc == nil || res.Doc.ID != id {
		t.Errorf("expected remote doc %s, got %+v", id, res)
	}
}

func TestResolveRejectsWrongContentType(t *testing.T) {
	service, _, client := newTestService()
	uri := "https://remote.example/user/html"
	client.SetResponse(uri, http.StatusOK, "text/html", []byte("<html>nope</html>"))

	if _, err := service.resolver.Resolve(context.Background(), uri); err == nil {
		t.Error("expected error for non-JSON content type")
	}
}

func TestResolveRejectsIncompleteActor(t *testing.T) {
	service, _, client := newTestService()
	uri := "https://remote.example/user/noinbox"
	client.SetResponse(uri, http.StatusOK, "application/activity+json",
		[]byte(`{"id":"`+uri+`","type":"Person"}`))

	if _, err := service.resolver.Resolve(context.Background(), uri); err == nil {
		t.Error("expected error for actor without inbox")
	}
}

func TestResolveObjectRejectsLocalIDs(t *testing.T) {
	service, _, _ := newTestService()
	if _, err := service.resolver.ResolveObject(context.Background(), "https://"+testDomain+"/post/1"); err == nil {
		t.Error("expected error resolving a local object id")
	}
}

func TestResolveFailuresAreNotCachedAsDocuments(t *testing.T) {
	service, _, client := newTestService()
	uri := "https://remote.example/user/flaky"

	if _, err := service.resolver.Resolve(context.Background(), uri); err == nil {
		t.Fatal("expected 404 failure")
	}
	doc := personDoc("remote.example", "flaky")
	doc.ID = uri
	doc.Inbox = uri + "/inbox"
	if err := client.SetJSONResponse(uri, http.StatusOK, doc); err != nil {
		t.Fatal(err)
	}
	res, err := service.resolver.Resolve(context.Background(), uri)
	if err != nil {
		t.Fatalf("resolve after recovery failed: %v", err)
	}
	if res.Doc.ID != uri {
		t.Errorf("got %s, want %s", res.Doc.ID, uri)
	}
}
