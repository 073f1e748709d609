package activitypub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mammutbb/mammut/domain"
	"github.com/mammutbb/mammut/util"
)

const topicTitleMaxLen = 120

// AssertNote materialises a remote content object. Public objects become
// a post (and, for thread roots, a topic) in the category the addressing
// selects; objects addressed to recipients only, with an empty cc, are
// private and land in a chat room instead, leaving no topic or post
// behind. cid is a caller-supplied category hint and may be empty.
func (s *Service) AssertNote(ctx context.Context, cid string, objectID string, opts AssertOpts) (*domain.NoteAssertion, error) {
	readErr, existing := s.db.ReadPost(objectID)
	if readErr == nil && !opts.Update {
		return &domain.NoteAssertion{TID: existing.TID, Count: 1}, nil
	}
	if readErr != nil && !errors.Is(readErr, sql.ErrNoRows) {
		return nil, fmt.Errorf("read post %s: %w", objectID, readErr)
	}

	doc, err := s.resolver.ResolveObject(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if opts.Trust != domain.TrustInternal && doc.ID != objectID {
		return nil, fmt.Errorf("object id mismatch: asked for %s, got %s", objectID, doc.ID)
	}

	unlock := s.locks.lock(doc.ID)
	defer unlock()

	// the fetch left a window with no lock held; another delivery of the
	// same object may have landed it in the meantime
	readErr, existing = s.db.ReadPost(doc.ID)
	if readErr == nil && !opts.Update {
		return &domain.NoteAssertion{TID: existing.TID, Count: 1}, nil
	}
	if readErr != nil && !errors.Is(readErr, sql.ErrNoRows) {
		return nil, fmt.Errorf("read post %s: %w", doc.ID, readErr)
	}

	if isPrivate(doc) {
		return s.assertPrivateNote(ctx, doc)
	}
	return s.assertPublicNote(ctx, cid, doc, opts, existing)
}

// InboxCreate handles an inbound Create activity. The embedded object
// may only prime the resolver cache when its id shares the delivering
// actor's origin; an object claiming an id on another host is refetched
// from that host, so a peer cannot speak for content it does not own.
func (s *Service) InboxCreate(ctx context.Context, activity *domain.Activity) (*domain.NoteAssertion, error) {
	if activity.Object == nil || activity.Object.ID == "" {
		return nil, fmt.Errorf("create activity %s carries no object", activity.ID)
	}
	obj := activity.Object
	if len(obj.To) == 0 && len(obj.Cc) == 0 {
		obj.To = activity.To
		obj.Cc = activity.Cc
	}
	if sameOrigin(activity.Actor, obj.ID) {
		s.resolver.PrimeObject(obj)
	}
	return s.AssertNote(ctx, "", obj.ID, AssertOpts{Trust: domain.TrustVerified})
}

func sameOrigin(a string, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Host != "" && strings.EqualFold(ua.Host, ub.Host)
}

// isPrivate reports whether an object is addressed as a direct message:
// explicit recipients, nobody on cc, and no public collection anywhere.
func isPrivate(doc *domain.ObjectDocument) bool {
	if len(doc.To) == 0 || len(doc.Cc) > 0 {
		return false
	}
	for _, addr := range doc.To {
		if addr == domain.PublicCollection {
			return false
		}
	}
	return true
}

func (s *Service) assertPrivateNote(ctx context.Context, doc *domain.ObjectDocument) (*domain.NoteAssertion, error) {
	if doc.AttributedTo == "" {
		return nil, fmt.Errorf("private object %s has no author", doc.ID)
	}
	authors := s.AssertActors(ctx, []string{doc.AttributedTo}, AssertOpts{})
	if len(authors) == 0 {
		return nil, fmt.Errorf("private object %s: author %s could not be asserted", doc.ID, doc.AttributedTo)
	}
	ownerUID := authors[0].UID

	participants := []string{ownerUID}
	for _, addr := range doc.To {
		if uid, ok := s.localUID(addr); ok {
			participants = append(participants, uid)
		}
	}
	key := participantKey(participants)

	readErr, room := s.db.ReadRoomByParticipantKey(key)
	if errors.Is(readErr, sql.ErrNoRows) {
		created := &domain.Room{
			OwnerUID:       ownerUID,
			ParticipantKey: key,
			CreatedAt:      time.Now(),
		}
		if err := s.db.CreateRoom(created); err != nil {
			return nil, fmt.Errorf("create room for %s: %w", doc.ID, err)
		}
		room = created
	} else if readErr != nil {
		return nil, fmt.Errorf("read room for %s: %w", doc.ID, readErr)
	}

	return &domain.NoteAssertion{RoomID: room.RoomID}, nil
}

// localUID maps a local user actor URI onto its uid, verifying the
// account actually exists.
func (s *Service) localUID(addr string) (string, bool) {
	res, ok := s.resolver.resolveLocalURI(addr)
	if !ok || res.LocalUID == "" {
		return "", false
	}
	exists, err := s.db.AccountExists(res.LocalUID)
	if err != nil || !exists {
		return "", false
	}
	return res.LocalUID, true
}

func participantKey(uids []string) string {
	seen := make(map[string]struct{}, len(uids))
	unique := make([]string, 0, len(uids))
	for _, uid := range uids {
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		unique = append(unique, uid)
	}
	sort.Strings(unique)
	return strings.Join(unique, ";")
}

func (s *Service) assertPublicNote(ctx context.Context, cid string, doc *domain.ObjectDocument, opts AssertOpts, existing *domain.Post) (*domain.NoteAssertion, error) {
	authorUID := doc.AttributedTo
	if authorUID == "" {
		return nil, fmt.Errorf("object %s has no author", doc.ID)
	}
	authors := s.AssertActors(ctx, []string{doc.AttributedTo}, AssertOpts{Trust: opts.Trust})
	if len(authors) > 0 {
		if a := authors[0]; a.UID != "" {
			authorUID = a.UID
		}
	} else if opts.Trust != domain.TrustInternal {
		return nil, fmt.Errorf("object %s: author %s could not be asserted", doc.ID, doc.AttributedTo)
	}

	targetCID := s.resolveAudience(ctx, cid, doc)
	timestamp := publishedAt(doc)

	tid := ""
	newTopic := false
	if doc.InReplyTo != "" {
		if err, parent := s.db.ReadPost(doc.InReplyTo); err == nil {
			tid = parent.TID
		}
	}
	if existing != nil {
		tid = existing.TID
	}
	if tid == "" {
		issued, err := s.db.NextID("tid")
		if err != nil {
			return nil, fmt.Errorf("issue tid for %s: %w", doc.ID, err)
		}
		tid = issued
		newTopic = true
		topic := &domain.Topic{
			TID:       tid,
			CID:       targetCID,
			UID:       authorUID,
			MainPID:   doc.ID,
			Title:     titleFor(doc),
			Slug:      tid,
			Timestamp: timestamp,
		}
		if err := s.db.CreateTopic(topic); err != nil {
			return nil, fmt.Errorf("create topic for %s: %w", doc.ID, err)
		}
	}

	post := &domain.Post{
		PID:       doc.ID,
		TID:       tid,
		UID:       authorUID,
		Content:   doc.Content,
		Remote:    true,
		Timestamp: timestamp,
	}
	if existing != nil {
		now := time.Now()
		post.EditedAt = &now
		if err := s.db.UpdatePost(post); err != nil {
			return nil, fmt.Errorf("update post %s: %w", doc.ID, err)
		}
	} else {
		if err := s.db.CreatePost(post); err != nil {
			return nil, fmt.Errorf("create post %s: %w", doc.ID, err)
		}
	}

	if recipients := s.localRecipients(doc); len(recipients) > 0 {
		if err := s.db.AddPostRecipients(doc.ID, recipients); err != nil {
			return nil, fmt.Errorf("record recipients for %s: %w", doc.ID, err)
		}
	}

	if existing == nil && targetCID != s.conf.Conf.FallbackCategory {
		topicDelta := 0
		if newTopic {
			topicDelta = 1
		}
		if err := s.db.IncrCategoryCounters(targetCID, topicDelta, 1); err != nil {
			log.Printf("counter update failed for category %s: %v", targetCID, err)
		}
		if newTopic {
			s.notifyWatchers(targetCID, tid, doc.ID, authorUID, timestamp)
		}
	}

	if err := s.SyncUserInboxes(tid, ""); err != nil {
		log.Printf("inbox sync failed for topic %s: %v", tid, err)
	}

	return &domain.NoteAssertion{TID: tid, Count: 1}, nil
}

// resolveAudience picks the destination category: a known category among
// the addressees wins (cc before to), then a Group actor we can assert
// on the fly, then the caller's hint, then the unlisted fallback.
func (s *Service) resolveAudience(ctx context.Context, cid string, doc *domain.ObjectDocument) string {
	addressees := make([]string, 0, len(doc.Cc)+len(doc.To))
	addressees = append(addressees, doc.Cc...)
	addressees = append(addressees, doc.To...)

	for _, addr := range addressees {
		if addr == domain.PublicCollection {
			continue
		}
		if res, ok := s.resolver.resolveLocalURI(addr); ok {
			if res.LocalCID != "" {
				if exists, err := s.db.CategoryExists(res.LocalCID); err == nil && exists {
					return res.LocalCID
				}
			}
			continue
		}
		if exists, err := s.db.CategoryExists(addr); err == nil && exists {
			return addr
		}
	}
	for _, addr := range addressees {
		if addr == domain.PublicCollection || s.resolver.isLocalOrigin(addr) {
			continue
		}
		if groups := s.AssertGroups(ctx, []string{addr}, AssertOpts{}); len(groups) == 1 {
			return groups[0].CID
		}
	}
	if cid != "" && cid != "0" {
		if exists, err := s.db.CategoryExists(cid); err == nil && exists {
			return cid
		}
	}
	return s.conf.Conf.FallbackCategory
}

// localRecipients extracts the local uids explicitly addressed by the
// object, across to and cc.
func (s *Service) localRecipients(doc *domain.ObjectDocument) []string {
	seen := make(map[string]struct{})
	var uids []string
	for _, addr := range append(append([]string{}, doc.To...), doc.Cc...) {
		uid, ok := s.localUID(addr)
		if !ok {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		uids = append(uids, uid)
	}
	return uids
}

// notifyWatchers fans a new topic out to the category's watchers. They
// join the main post's recipient set, so the subsequent inbox sync (and
// every later resync) keeps their inbox entries alive; watching users
// additionally get a notification.
func (s *Service) notifyWatchers(cid string, tid string, mainPID string, authorUID string, at time.Time) {
	err, watchers := s.db.ReadCategoryWatchers(cid)
	if err != nil {
		log.Printf("reading watchers of category %s failed: %v", cid, err)
		return
	}
	var recipients []string
	for _, w := range *watchers {
		if w.State < domain.WatchTracking {
			continue
		}
		recipients = append(recipients, w.UID)
		if w.State < domain.WatchWatching {
			continue
		}
		n := &domain.Notification{
			NID:       fmt.Sprintf("new_topic:tid:%s:uid:%s", tid, authorUID),
			UID:       w.UID,
			TID:       tid,
			FromUID:   authorUID,
			Kind:      "new_topic",
			CreatedAt: at,
		}
		if err := s.db.CreateNotification(n); err != nil {
			log.Printf("notification failed for uid %s: %v", w.UID, err)
		}
	}
	if len(recipients) > 0 {
		if err := s.db.AddPostRecipients(mainPID, recipients); err != nil {
			log.Printf("watcher recipients failed for post %s: %v", mainPID, err)
		}
	}
}

func publishedAt(doc *domain.ObjectDocument) time.Time {
	if doc.Published != "" {
		if t, err := time.Parse(time.RFC3339, doc.Published); err == nil {
			return t
		}
	}
	return time.Now()
}

func titleFor(doc *domain.ObjectDocument) string {
	if doc.Name != "" {
		return util.TruncateContent(doc.Name, topicTitleMaxLen)
	}
	return util.TruncateContent(util.StripHTMLTags(doc.Content), topicTitleMaxLen)
}
