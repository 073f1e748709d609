package activitypub

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mammutbb/mammut/domain"
	"github.com/mammutbb/mammut/util"
	"github.com/patrickmn/go-cache"
)

// Outbox builds outbound activities for locally created content and
// queues them for delivery. A short-lived cache keyed by activity type
// and object id swallows duplicate sends, so a retried local action does
// not fan out twice.
type Outbox struct {
	db   Database
	conf *util.AppConfig
	sent *cache.Cache
}

func NewOutbox(database Database, conf *util.AppConfig) *Outbox {
	ttl := time.Duration(conf.Conf.SentCacheMins) * time.Minute
	return &Outbox{
		db:   database,
		conf: conf,
		sent: cache.New(ttl, 2*ttl),
	}
}

// SendCreate announces a locally written post to the federated category
// it was posted into. Local-only categories produce the activity (for
// followers of the author) without a community delivery.
func (o *Outbox) SendCreate(account *domain.Account, topic *domain.Topic, post *domain.Post) (*domain.Activity, error) {
	err, category := o.db.ReadCategoryById(topic.CID)
	if err != nil {
		return nil, fmt.Errorf("read category %s: %w", topic.CID, err)
	}

	base := o.conf.BaseURL()
	actorURI := base + "/uid/" + account.UID
	objectURI := base + "/post/" + post.PID

	categoryAddr := base + "/category/" + category.CID
	if category.Remote {
		categoryAddr = category.ActorURI
	}

	object := &domain.ObjectDocument{
		ID:           objectURI,
		Type:         "Note",
		URL:          objectURI,
		AttributedTo: actorURI,
		Content:      post.Content,
		MediaType:    "text/html",
		To:           domain.StringList{domain.PublicCollection},
		Cc:           domain.StringList{categoryAddr},
		Published:    post.Timestamp.UTC().Format(time.RFC3339),
	}
	if post.PID != topic.MainPID {
		object.InReplyTo = o.postURI(topic.MainPID)
	} else {
		object.Name = topic.Title
	}

	activity := &domain.Activity{
		Context:   "https://www.w3.org/ns/activitystreams",
		ID:        base + "/activity/" + uuid.New().String(),
		Type:      "Create",
		Actor:     actorURI,
		To:        object.To,
		Cc:        object.Cc,
		Published: object.Published,
		Object:    object,
	}

	key := "Create;" + objectURI
	if _, dup := o.sent.Get(key); dup {
		log.Printf("suppressing duplicate Create for %s", objectURI)
		return activity, nil
	}
	o.sent.Set(key, activity, cache.DefaultExpiration)

	if category.Remote && category.InboxURI != "" {
		if err := o.enqueue(actorURI, category.InboxURI, activity); err != nil {
			return nil, err
		}
	}
	return activity, nil
}

// SendDelete retracts a local post at the community it was announced to.
func (o *Outbox) SendDelete(account *domain.Account, topic *domain.Topic, post *domain.Post) (*domain.Activity, error) {
	err, category := o.db.ReadCategoryById(topic.CID)
	if err != nil {
		return nil, fmt.Errorf("read category %s: %w", topic.CID, err)
	}

	base := o.conf.BaseURL()
	actorURI := base + "/uid/" + account.UID
	objectURI := base + "/post/" + post.PID

	activity := &domain.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      base + "/activity/" + uuid.New().String(),
		Type:    "Delete",
		Actor:   actorURI,
		To:      domain.StringList{domain.PublicCollection},
		Object:  &domain.ObjectDocument{ID: objectURI, Type: "Tombstone"},
	}

	key := "Delete;" + objectURI
	if _, dup := o.sent.Get(key); dup {
		return activity, nil
	}
	o.sent.Set(key, activity, cache.DefaultExpiration)

	if category.Remote && category.InboxURI != "" {
		if err := o.enqueue(actorURI, category.InboxURI, activity); err != nil {
			return nil, err
		}
	}
	return activity, nil
}

func (o *Outbox) postURI(pid string) string {
	if err, post := o.db.ReadPost(pid); err == nil && post.Remote {
		return post.PID
	}
	return o.conf.BaseURL() + "/post/" + pid
}

func (o *Outbox) enqueue(actorURI string, inboxURI string, activity *domain.Activity) error {
	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshal activity %s: %w", activity.ID, err)
	}
	item := &domain.DeliveryQueueItem{
		Id:           uuid.New(),
		InboxURI:     inboxURI,
		ActorURI:     actorURI,
		ActivityJSON: string(payload),
		NextRetryAt:  time.Now(),
		CreatedAt:    time.Now(),
	}
	if err := o.db.EnqueueDelivery(item); err != nil {
		return fmt.Errorf("queue delivery to %s: %w", inboxURI, err)
	}
	return nil
}

// Sent lists the dedup keys currently held, sorted. Exposed for the
// admin surface and for tests.
func (o *Outbox) Sent() []string {
	items := o.sent.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ClearSent drops the dedup cache, allowing everything to be re-sent.
func (o *Outbox) ClearSent() {
	o.sent.Flush()
}
