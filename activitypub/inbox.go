package activitypub

import (
	"fmt"
	"log"
	"sort"
	"time"
)

// SyncUserInboxes recomputes which local users should see a remote topic
// in their inbox, from the union of all per-post recipient sets. An
// optional uid is force-added even when no post names it, which is how a
// user following into an existing conversation picks it up. When no uid
// is forced, users no longer covered by any post are removed again.
func (s *Service) SyncUserInboxes(tid string, uid string) error {
	err, posts := s.db.ReadPostsByTopic(tid)
	if err != nil {
		return fmt.Errorf("read posts of topic %s: %w", tid, err)
	}

	union := make(map[string]struct{})
	at := time.Now()
	for _, p := range *posts {
		if p.Timestamp.After(at) {
			at = p.Timestamp
		}
		err, recipients := s.db.ReadPostRecipients(p.PID)
		if err != nil {
			return fmt.Errorf("read recipients of post %s: %w", p.PID, err)
		}
		for _, r := range *recipients {
			union[r] = struct{}{}
		}
	}

	uids := make([]string, 0, len(union))
	for u := range union {
		uids = append(uids, u)
	}
	sort.Strings(uids)
	if err := s.db.SetTopicRecipients(tid, uids); err != nil {
		return fmt.Errorf("store recipients of topic %s: %w", tid, err)
	}

	targets := uids
	if uid != "" {
		if _, ok := union[uid]; !ok {
			targets = append(append([]string{}, uids...), uid)
		}
	}
	for _, target := range targets {
		if err := s.db.AddToInbox(target, tid, at); err != nil {
			return fmt.Errorf("add topic %s to inbox of %s: %w", tid, target, err)
		}
	}

	if uid == "" {
		err, inboxed := s.db.ReadInboxUsersByTopic(tid)
		if err != nil {
			return fmt.Errorf("read inbox holders of topic %s: %w", tid, err)
		}
		for _, holder := range *inboxed {
			if _, ok := union[holder]; ok {
				continue
			}
			if err := s.db.RemoveFromInbox(holder, tid); err != nil {
				log.Printf("stale inbox removal failed for uid %s topic %s: %v", holder, tid, err)
			}
		}
	}
	return nil
}
