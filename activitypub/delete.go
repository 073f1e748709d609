package activitypub

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
)

// DeletePosts removes the given posts along with their recipient sets.
// Inbox entries backed only by a removed post stay until the topic's
// next sync recomputes them. Individual failures are logged and skipped.
func (s *Service) DeletePosts(pids []string) {
	for _, pid := range pids {
		err, _ := s.db.ReadPost(pid)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			log.Printf("delete: read post %s failed: %v", pid, err)
			continue
		}
		if err := s.db.DeletePostRecipients(pid); err != nil {
			log.Printf("delete: dropping recipients of %s failed: %v", pid, err)
		}
		if err := s.db.DeletePost(pid); err != nil {
			log.Printf("delete: removing post %s failed: %v", pid, err)
		}
	}
}

// PurgeCategory removes a remote community and every index entry that
// points at it: the handle mapping, the remote marker and the category
// row itself. Topics keep existing and fall back to the unlisted
// category when rendered.
func (s *Service) PurgeCategory(cid string) error {
	err, category := s.db.ReadCategoryById(cid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read category %s: %w", cid, err)
	}
	if category.Slug != "" {
		if err := s.db.DeleteCategoryHandle(category.Slug); err != nil {
			log.Printf("purge: dropping handle %s failed: %v", category.Slug, err)
		}
	}
	if err := s.db.DeleteRemoteCategoryMarker(cid); err != nil {
		log.Printf("purge: dropping remote marker of %s failed: %v", cid, err)
	}
	if err := s.db.DeleteCategory(cid); err != nil {
		return fmt.Errorf("remove category %s: %w", cid, err)
	}
	return nil
}
