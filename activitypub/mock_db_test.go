package activitypub

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mammutbb/mammut/domain"
)

// MockDatabase is an in-memory implementation of the Database interface
// for testing. It stores entities in maps and mirrors the sqlite-backed
// implementation's not-found semantics (sql.ErrNoRows).
type MockDatabase struct {
	mu sync.RWMutex

	Sequences       map[string]int64
	Accounts        map[string]*domain.Account
	AccountsByUser  map[string]*domain.Account
	RemoteUsers     map[string]*domain.RemoteUser
	UserHandles     map[string]string
	UserShares      map[string]map[string]time.Time
	Categories      map[string]*domain.Category
	CategoryHandles map[string]string
	RemoteMarkers   map[string]struct{}
	Watchers        map[string][]domain.CategoryWatcher
	Notifications   map[string]*domain.Notification
	Topics          map[string]*domain.Topic
	Posts           map[string]*domain.Post
	PostRecipients  map[string]map[string]struct{}
	TopicRecipients map[string][]string
	Inbox           map[string]map[string]time.Time
	Rooms           map[string]*domain.Room
	DeliveryQueue   map[uuid.UUID]*domain.DeliveryQueueItem

	nextRoomID int64

	// ForceError, when set, is returned by every operation.
	ForceError error
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		Sequences:       make(map[string]int64),
		Accounts:        make(map[string]*domain.Account),
		AccountsByUser:  make(map[string]*domain.Account),
		RemoteUsers:     make(map[string]*domain.RemoteUser),
		UserHandles:     make(map[string]string),
		UserShares:      make(map[string]map[string]time.Time),
		Categories:      make(map[string]*domain.Category),
		CategoryHandles: make(map[string]string),
		RemoteMarkers:   make(map[string]struct{}),
		Watchers:        make(map[string][]domain.CategoryWatcher),
		Notifications:   make(map[string]*domain.Notification),
		Topics:          make(map[string]*domain.Topic),
		Posts:           make(map[string]*domain.Post),
		PostRecipients:  make(map[string]map[string]struct{}),
		TopicRecipients: make(map[string][]string),
		Inbox:           make(map[string]map[string]time.Time),
		Rooms:           make(map[string]*domain.Room),
		DeliveryQueue:   make(map[uuid.UUID]*domain.DeliveryQueueItem),
	}
}

func (m *MockDatabase) NextID(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return "", m.ForceError
	}
	m.Sequences[name]++
	return fmt.Sprintf("%d", m.Sequences[name]), nil
}

func (m *MockDatabase) ReadAccountById(uid string) (error, *domain.Account) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	acc, ok := m.Accounts[uid]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, acc
}

func (m *MockDatabase) ReadAccountByUsername(username string) (error, *domain.Account) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	acc, ok := m.AccountsByUser[username]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, acc
}

func (m *MockDatabase) AccountExists(uid string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	_, ok := m.Accounts[uid]
	return ok, nil
}

// AddAccount is a test helper that registers a local account.
func (m *MockDatabase) AddAccount(acc *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accounts[acc.UID] = acc
	m.AccountsByUser[acc.Username] = acc
}

func (m *MockDatabase) CreateRemoteUser(user *domain.RemoteUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.RemoteUsers[user.UID] = user
	return nil
}

func (m *MockDatabase) UpdateRemoteUser(user *domain.RemoteUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if _, ok := m.RemoteUsers[user.UID]; !ok {
		return sql.ErrNoRows
	}
	m.RemoteUsers[user.UID] = user
	return nil
}

func (m *MockDatabase) ReadRemoteUserByURI(uri string) (error, *domain.RemoteUser) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	user, ok := m.RemoteUsers[uri]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, user
}

func (m *MockDatabase) RemoteUserExists(uri string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	_, ok := m.RemoteUsers[uri]
	return ok, nil
}

func (m *MockDatabase) DeleteRemoteUser(uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.RemoteUsers, uri)
	return nil
}

func (m *MockDatabase) SetUserHandle(handle string, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.UserHandles[handle] = uid
	return nil
}

func (m *MockDatabase) ReadUIDByUserHandle(handle string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return "", m.ForceError
	}
	uid, ok := m.UserHandles[handle]
	if !ok {
		return "", sql.ErrNoRows
	}
	return uid, nil
}

func (m *MockDatabase) DeleteUserHandle(handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.UserHandles, handle)
	return nil
}

func (m *MockDatabase) AddUserShare(uid string, tid string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if m.UserShares[uid] == nil {
		m.UserShares[uid] = make(map[string]time.Time)
	}
	m.UserShares[uid][tid] = at
	return nil
}

func (m *MockDatabase) CountUserShares(uid string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return 0, m.ForceError
	}
	return len(m.UserShares[uid]), nil
}

func (m *MockDatabase) DeleteUserShares(uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.UserShares, uid)
	return nil
}

func (m *MockDatabase) CreateCategory(category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Categories[category.CID] = category
	return nil
}

func (m *MockDatabase) UpdateCategory(category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if _, ok := m.Categories[category.CID]; !ok {
		return sql.ErrNoRows
	}
	m.Categories[category.CID] = category
	return nil
}

func (m *MockDatabase) ReadCategoryById(cid string) (error, *domain.Category) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	category, ok := m.Categories[cid]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, category
}

func (m *MockDatabase) CategoryExists(cid string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	_, ok := m.Categories[cid]
	return ok, nil
}

func (m *MockDatabase) DeleteCategory(cid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Categories, cid)
	return nil
}

func (m *MockDatabase) IncrCategoryCounters(cid string, topics int, posts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	category, ok := m.Categories[cid]
	if !ok {
		return sql.ErrNoRows
	}
	category.TopicCount += topics
	category.PostCount += posts
	return nil
}

func (m *MockDatabase) SetCategoryHandle(handle string, cid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.CategoryHandles[handle] = cid
	return nil
}

func (m *MockDatabase) DeleteCategoryHandle(handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.CategoryHandles, handle)
	return nil
}

func (m *MockDatabase) SetRemoteCategoryMarker(cid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.RemoteMarkers[cid] = struct{}{}
	return nil
}

func (m *MockDatabase) HasRemoteCategoryMarker(cid string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	_, ok := m.RemoteMarkers[cid]
	return ok, nil
}

func (m *MockDatabase) DeleteRemoteCategoryMarker(cid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.RemoteMarkers, cid)
	return nil
}

func (m *MockDatabase) ReadCategoryWatchers(cid string) (error, *[]domain.CategoryWatcher) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	watchers := append([]domain.CategoryWatcher{}, m.Watchers[cid]...)
	return nil, &watchers
}

// SetWatcher is a test helper that registers a category watcher.
func (m *MockDatabase) SetWatcher(cid string, uid string, state domain.WatchState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Watchers[cid] = append(m.Watchers[cid], domain.CategoryWatcher{UID: uid, State: state})
}

func (m *MockDatabase) CreateNotification(n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := n.NID + ";" + n.UID
	if _, ok := m.Notifications[key]; ok {
		return nil
	}
	m.Notifications[key] = n
	return nil
}

func (m *MockDatabase) CreateTopic(topic *domain.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Topics[topic.TID] = topic
	return nil
}

func (m *MockDatabase) ReadTopic(tid string) (error, *domain.Topic) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	topic, ok := m.Topics[tid]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, topic
}

func (m *MockDatabase) TopicExists(tid string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return false, m.ForceError
	}
	_, ok := m.Topics[tid]
	return ok, nil
}

func (m *MockDatabase) DeleteTopic(tid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Topics, tid)
	return nil
}

func (m *MockDatabase) CreatePost(post *domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.Posts[post.PID] = post
	return nil
}

func (m *MockDatabase) UpdatePost(post *domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if _, ok := m.Posts[post.PID]; !ok {
		return sql.ErrNoRows
	}
	m.Posts[post.PID] = post
	return nil
}

func (m *MockDatabase) ReadPost(pid string) (error, *domain.Post) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	post, ok := m.Posts[pid]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, post
}

func (m *MockDatabase) ReadPostsByTopic(tid string) (error, *[]domain.Post) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var posts []domain.Post
	for _, p := range m.Posts {
		if p.TID == tid {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].Timestamp.Before(posts[j].Timestamp) })
	return nil, &posts
}

func (m *MockDatabase) DeletePost(pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Posts, pid)
	return nil
}

func (m *MockDatabase) AddPostRecipients(pid string, uids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if m.PostRecipients[pid] == nil {
		m.PostRecipients[pid] = make(map[string]struct{})
	}
	for _, uid := range uids {
		m.PostRecipients[pid][uid] = struct{}{}
	}
	return nil
}

func (m *MockDatabase) ReadPostRecipients(pid string) (error, *[]string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var uids []string
	for uid := range m.PostRecipients[pid] {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return nil, &uids
}

func (m *MockDatabase) DeletePostRecipients(pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.PostRecipients, pid)
	return nil
}

func (m *MockDatabase) SetTopicRecipients(tid string, uids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.TopicRecipients[tid] = append([]string{}, uids...)
	return nil
}

func (m *MockDatabase) AddToInbox(uid string, tid string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if m.Inbox[uid] == nil {
		m.Inbox[uid] = make(map[string]time.Time)
	}
	m.Inbox[uid][tid] = at
	return nil
}

func (m *MockDatabase) RemoveFromInbox(uid string, tid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Inbox[uid], tid)
	return nil
}

func (m *MockDatabase) ReadInboxUsersByTopic(tid string) (error, *[]string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var uids []string
	for uid, topics := range m.Inbox {
		if _, ok := topics[tid]; ok {
			uids = append(uids, uid)
		}
	}
	sort.Strings(uids)
	return nil, &uids
}

// InboxContains is a test helper.
func (m *MockDatabase) InboxContains(uid string, tid string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.Inbox[uid][tid]
	return ok
}

func (m *MockDatabase) ReadRoomByParticipantKey(key string) (error, *domain.Room) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	room, ok := m.Rooms[key]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, room
}

func (m *MockDatabase) CreateRoom(room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.nextRoomID++
	room.RoomID = m.nextRoomID
	m.Rooms[room.ParticipantKey] = room
	return nil
}

func (m *MockDatabase) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.DeliveryQueue[item.Id] = item
	return nil
}

func (m *MockDatabase) ReadDueDeliveries(now time.Time, limit int) (error, *[]domain.DeliveryQueueItem) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	var due []domain.DeliveryQueueItem
	for _, item := range m.DeliveryQueue {
		if !item.NextRetryAt.After(now) {
			due = append(due, *item)
		}
		if len(due) == limit {
			break
		}
	}
	return nil, &due
}

func (m *MockDatabase) UpdateDelivery(item *domain.DeliveryQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if _, ok := m.DeliveryQueue[item.Id]; !ok {
		return sql.ErrNoRows
	}
	m.DeliveryQueue[item.Id] = item
	return nil
}

func (m *MockDatabase) DeleteDelivery(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.DeliveryQueue, id)
	return nil
}

// Interface guard.
var _ Database = (*MockDatabase)(nil)
