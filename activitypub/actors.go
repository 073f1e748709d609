package activitypub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mammutbb/mammut/domain"
	"github.com/mammutbb/mammut/util"
)

// AssertOpts tunes a single assertion batch.
type AssertOpts struct {
	// Update refreshes already-known entities from their latest document
	// instead of leaving them untouched.
	Update bool
	Trust  domain.TrustLevel
}

// AssertActors resolves the given actor ids or handles and materialises
// each unknown remote actor as a local entity. The result is sparse: a
// failed id is logged and skipped, never aborting the rest of the batch.
func (s *Service) AssertActors(ctx context.Context, ids []string, opts AssertOpts) []domain.ActorAssertion {
	out := make([]domain.ActorAssertion, 0, len(ids))
	for _, id := range ids {
		assertion, err := s.assertActor(ctx, id, opts)
		if err != nil {
			log.Printf("actor assertion failed for %s: %v", id, err)
			continue
		}
		out = append(out, *assertion)
	}
	return out
}

// AssertGroups is AssertActors restricted to Group actors. Ids that
// resolve to anything other than a Group are dropped, so a batch of
// plain users yields an empty result.
func (s *Service) AssertGroups(ctx context.Context, ids []string, opts AssertOpts) []domain.ActorAssertion {
	out := make([]domain.ActorAssertion, 0, len(ids))
	for _, id := range ids {
		res, err := s.resolver.Resolve(ctx, id)
		if err != nil {
			log.Printf("group assertion failed for %s: %v", id, err)
			continue
		}
		if res.Local {
			if res.LocalCID != "" {
				out = append(out, domain.ActorAssertion{URI: id, Kind: domain.KindGroup, CID: res.LocalCID, Local: true})
			}
			continue
		}
		if res.Doc.Kind() != domain.KindGroup {
			continue
		}
		unlock := s.locks.lock(res.Doc.ID)
		assertion, err := s.assertRemoteCategory(res.Doc, opts)
		unlock()
		if err != nil {
			log.Printf("group assertion failed for %s: %v", id, err)
			continue
		}
		out = append(out, *assertion)
	}
	return out
}

func (s *Service) assertActor(ctx context.Context, id string, opts AssertOpts) (*domain.ActorAssertion, error) {
	res, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Local {
		kind := domain.KindPerson
		if res.LocalCID != "" {
			kind = domain.KindGroup
		}
		return &domain.ActorAssertion{URI: id, Kind: kind, UID: res.LocalUID, CID: res.LocalCID, Local: true}, nil
	}

	doc := res.Doc
	unlock := s.locks.lock(doc.ID)
	defer unlock()

	switch doc.Kind() {
	case domain.KindPerson, domain.KindApplication:
		return s.assertRemoteUser(doc, opts)
	case domain.KindGroup:
		return s.assertRemoteCategory(doc, opts)
	default:
		return nil, fmt.Errorf("unhandled actor type %q for %s", doc.Type, doc.ID)
	}
}

func (s *Service) assertRemoteUser(doc *domain.ActorDocument, opts AssertOpts) (*domain.ActorAssertion, error) {
	handle, err := handleFor(doc)
	if err != nil {
		return nil, err
	}

	readErr, existing := s.db.ReadRemoteUserByURI(doc.ID)
	switch {
	case errors.Is(readErr, sql.ErrNoRows):
		user := remoteUserFromDoc(doc, handle)
		if err := s.db.CreateRemoteUser(user); err != nil {
			return nil, fmt.Errorf("create remote user %s: %w", doc.ID, err)
		}
		if err := s.db.SetUserHandle(handle, user.UID); err != nil {
			return nil, fmt.Errorf("map handle %s: %w", handle, err)
		}
	case readErr != nil:
		return nil, fmt.Errorf("read remote user %s: %w", doc.ID, readErr)
	case opts.Update:
		refreshed := remoteUserFromDoc(doc, handle)
		if err := s.db.UpdateRemoteUser(refreshed); err != nil {
			return nil, fmt.Errorf("update remote user %s: %w", doc.ID, err)
		}
		if existing.Handle != handle {
			_ = s.db.DeleteUserHandle(existing.Handle)
			if err := s.db.SetUserHandle(handle, doc.ID); err != nil {
				return nil, fmt.Errorf("remap handle %s: %w", handle, err)
			}
		}
	}

	return &domain.ActorAssertion{URI: doc.ID, Kind: doc.Kind(), UID: doc.ID, Slug: handle}, nil
}

func (s *Service) assertRemoteCategory(doc *domain.ActorDocument, opts AssertOpts) (*domain.ActorAssertion, error) {
	handle, err := handleFor(doc)
	if err != nil {
		return nil, err
	}

	// The same URI may have been asserted as a user before the remote
	// software reclassified it as a community.
	readErr, existingUser := s.db.ReadRemoteUserByURI(doc.ID)
	if readErr != nil && !errors.Is(readErr, sql.ErrNoRows) {
		return nil, fmt.Errorf("read remote user %s: %w", doc.ID, readErr)
	}
	if readErr == nil {
		if err := s.migrateUserToCategory(doc, existingUser, handle); err != nil {
			return nil, err
		}
		return &domain.ActorAssertion{URI: doc.ID, Kind: domain.KindGroup, CID: doc.ID, Slug: handle}, nil
	}

	catErr, _ := s.db.ReadCategoryById(doc.ID)
	switch {
	case errors.Is(catErr, sql.ErrNoRows):
		category := categoryFromDoc(doc, handle)
		if err := s.db.CreateCategory(category); err != nil {
			return nil, fmt.Errorf("create remote category %s: %w", doc.ID, err)
		}
		if err := s.db.SetRemoteCategoryMarker(doc.ID); err != nil {
			return nil, fmt.Errorf("mark remote category %s: %w", doc.ID, err)
		}
		if err := s.db.SetCategoryHandle(handle, doc.ID); err != nil {
			return nil, fmt.Errorf("map category handle %s: %w", handle, err)
		}
	case catErr != nil:
		return nil, fmt.Errorf("read category %s: %w", doc.ID, catErr)
	case opts.Update:
		refreshed := categoryFromDoc(doc, handle)
		if err := s.db.UpdateCategory(refreshed); err != nil {
			return nil, fmt.Errorf("update remote category %s: %w", doc.ID, err)
		}
	}

	return &domain.ActorAssertion{URI: doc.ID, Kind: domain.KindGroup, CID: doc.ID, Slug: handle}, nil
}

// migrateUserToCategory converts an actor previously known as a user into
// a community at the same identity. The user's share count seeds the
// community's counters; the user record itself disappears, so at no point
// does the URI exist as both.
func (s *Service) migrateUserToCategory(doc *domain.ActorDocument, user *domain.RemoteUser, handle string) error {
	shares, err := s.db.CountUserShares(user.UID)
	if err != nil {
		return fmt.Errorf("count shares for %s: %w", user.UID, err)
	}

	if err := s.db.DeleteRemoteUser(user.UID); err != nil {
		return fmt.Errorf("remove migrated user %s: %w", user.UID, err)
	}
	if user.Handle != "" {
		if err := s.db.DeleteUserHandle(user.Handle); err != nil {
			return fmt.Errorf("remove migrated handle %s: %w", user.Handle, err)
		}
	}
	if err := s.db.DeleteUserShares(user.UID); err != nil {
		return fmt.Errorf("remove shares for %s: %w", user.UID, err)
	}

	category := categoryFromDoc(doc, handle)
	category.TopicCount = shares
	category.PostCount = shares
	if err := s.db.CreateCategory(category); err != nil {
		return fmt.Errorf("create migrated category %s: %w", doc.ID, err)
	}
	if err := s.db.SetRemoteCategoryMarker(doc.ID); err != nil {
		return fmt.Errorf("mark migrated category %s: %w", doc.ID, err)
	}
	if err := s.db.SetCategoryHandle(handle, doc.ID); err != nil {
		return fmt.Errorf("map migrated handle %s: %w", handle, err)
	}
	log.Printf("migrated actor %s from user to community (%d shares)", doc.ID, shares)
	return nil
}

func handleFor(doc *domain.ActorDocument) (string, error) {
	name := doc.PreferredUsername
	if name == "" {
		return "", fmt.Errorf("actor %s has no preferredUsername", doc.ID)
	}
	host, err := util.ExtractDomain(doc.ID)
	if err != nil {
		return "", fmt.Errorf("actor %s: %w", doc.ID, err)
	}
	return name + "@" + host, nil
}

func remoteUserFromDoc(doc *domain.ActorDocument, handle string) *domain.RemoteUser {
	user := &domain.RemoteUser{
		UID:           doc.ID,
		Username:      doc.PreferredUsername,
		Handle:        handle,
		ActorURI:      doc.ID,
		URL:           doc.URL,
		DisplayName:   doc.Name,
		Summary:       doc.Summary,
		InboxURI:      doc.Inbox,
		OutboxURI:     doc.Outbox,
		LastFetchedAt: time.Now(),
	}
	if host, err := util.ExtractDomain(doc.ID); err == nil {
		user.Domain = host
	}
	if doc.PublicKey != nil {
		user.PublicKeyPem = doc.PublicKey.PublicKeyPem
	}
	if doc.Icon != nil {
		user.AvatarURL = doc.Icon.URL
	}
	return user
}

func categoryFromDoc(doc *domain.ActorDocument, handle string) *domain.Category {
	category := &domain.Category{
		CID:         doc.ID,
		Name:        doc.Name,
		Slug:        handle,
		Description: doc.Summary,
		Remote:      true,
		ActorURI:    doc.ID,
		InboxURI:    doc.Inbox,
		OutboxURI:   doc.Outbox,
		CreatedAt:   time.Now(),
	}
	if category.Name == "" {
		category.Name = doc.PreferredUsername
	}
	if doc.PublicKey != nil {
		category.PublicKeyPem = doc.PublicKey.PublicKeyPem
	}
	if doc.Icon != nil {
		category.BackgroundImage = doc.Icon.URL
	}
	return category
}
