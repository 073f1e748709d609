// Package activitypub implements the federation engine: resolving and
// asserting remote actors and objects, keeping local inboxes in sync with
// remote conversations, and queueing signed outbound deliveries.
package activitypub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mammutbb/mammut/domain"
	"github.com/mammutbb/mammut/util"
)

// Database is the persistence surface the federation engine needs. The
// sqlite-backed db.DB satisfies it.
type Database interface {
	NextID(name string) (string, error)

	ReadAccountById(uid string) (error, *domain.Account)
	ReadAccountByUsername(username string) (error, *domain.Account)
	AccountExists(uid string) (bool, error)

	CreateRemoteUser(user *domain.RemoteUser) error
	UpdateRemoteUser(user *domain.RemoteUser) error
	ReadRemoteUserByURI(uri string) (error, *domain.RemoteUser)
	RemoteUserExists(uri string) (bool, error)
	DeleteRemoteUser(uri string) error

	SetUserHandle(handle string, uid string) error
	ReadUIDByUserHandle(handle string) (string, error)
	DeleteUserHandle(handle string) error

	AddUserShare(uid string, tid string, at time.Time) error
	CountUserShares(uid string) (int, error)
	DeleteUserShares(uid string) error

	CreateCategory(category *domain.Category) error
	UpdateCategory(category *domain.Category) error
	ReadCategoryById(cid string) (error, *domain.Category)
	CategoryExists(cid string) (bool, error)
	DeleteCategory(cid string) error
	IncrCategoryCounters(cid string, topics int, posts int) error

	SetCategoryHandle(handle string, cid string) error
	DeleteCategoryHandle(handle string) error

	SetRemoteCategoryMarker(cid string) error
	HasRemoteCategoryMarker(cid string) (bool, error)
	DeleteRemoteCategoryMarker(cid string) error

	ReadCategoryWatchers(cid string) (error, *[]domain.CategoryWatcher)
	CreateNotification(n *domain.Notification) error

	CreateTopic(topic *domain.Topic) error
	ReadTopic(tid string) (error, *domain.Topic)
	TopicExists(tid string) (bool, error)
	DeleteTopic(tid string) error

	CreatePost(post *domain.Post) error
	UpdatePost(post *domain.Post) error
	ReadPost(pid string) (error, *domain.Post)
	ReadPostsByTopic(tid string) (error, *[]domain.Post)
	DeletePost(pid string) error

	AddPostRecipients(pid string, uids []string) error
	ReadPostRecipients(pid string) (error, *[]string)
	DeletePostRecipients(pid string) error
	SetTopicRecipients(tid string, uids []string) error

	AddToInbox(uid string, tid string, at time.Time) error
	RemoveFromInbox(uid string, tid string) error
	ReadInboxUsersByTopic(tid string) (error, *[]string)

	ReadRoomByParticipantKey(key string) (error, *domain.Room)
	CreateRoom(room *domain.Room) error

	EnqueueDelivery(item *domain.DeliveryQueueItem) error
	ReadDueDeliveries(now time.Time, limit int) (error, *[]domain.DeliveryQueueItem)
	UpdateDelivery(item *domain.DeliveryQueueItem) error
	DeleteDelivery(id uuid.UUID) error
}

// Service coordinates assertion of remote actors and content into local
// entities. Assertions for the same URI are serialised through a per-URI
// lock so concurrent deliveries cannot race each other.
type Service struct {
	db       Database
	conf     *util.AppConfig
	resolver *Resolver
	locks    keyedLocks
}

func NewService(database Database, resolver *Resolver, conf *util.AppConfig) *Service {
	return &Service{
		db:       database,
		conf:     conf,
		resolver: resolver,
	}
}

// keyedLocks hands out one mutex per key. Entries are dropped again once
// the last holder releases, so the map does not grow with the number of
// distinct URIs seen.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
