package db

import (
	"database/sql"
	"fmt"

	"github.com/mammutbb/mammut/domain"
)

func (d *DB) CreateAccount(acc *domain.Account) error {
	_, err := d.conn.Exec(`
		INSERT INTO accounts (uid, username, display_name, summary, created_at, web_public_key, web_private_key, avatar_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		acc.UID, acc.Username, acc.DisplayName, acc.Summary, toUnix(acc.CreatedAt),
		acc.WebPublicKey, acc.WebPrivateKey, acc.AvatarURL)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (d *DB) scanAccount(row *sql.Row) (error, *domain.Account) {
	acc := &domain.Account{}
	var createdAt int64
	err := row.Scan(&acc.UID, &acc.Username, &acc.DisplayName, &acc.Summary,
		&createdAt, &acc.WebPublicKey, &acc.WebPrivateKey, &acc.AvatarURL)
	if err != nil {
		return err, nil
	}
	acc.CreatedAt = fromUnix(createdAt)
	return nil, acc
}

func (d *DB) ReadAccountById(uid string) (error, *domain.Account) {
	row := d.conn.QueryRow(`
		SELECT uid, username, display_name, summary, created_at, web_public_key, web_private_key, avatar_url
		FROM accounts WHERE uid = ?`, uid)
	return d.scanAccount(row)
}

func (d *DB) ReadAccountByUsername(username string) (error, *domain.Account) {
	row := d.conn.QueryRow(`
		SELECT uid, username, display_name, summary, created_at, web_public_key, web_private_key, avatar_url
		FROM accounts WHERE username = ?`, username)
	return d.scanAccount(row)
}

func (d *DB) AccountExists(uid string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM accounts WHERE uid = ?`, uid).Scan(&n)
	return n > 0, err
}

func (d *DB) CreateCategory(c *domain.Category) error {
	_, err := d.conn.Exec(`
		INSERT INTO categories (cid, name, slug, description, remote, actor_uri, inbox_uri, outbox_uri,
			public_key_pem, web_public_key, web_private_key, background_image, topic_count, post_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CID, c.Name, c.Slug, c.Description, boolToInt(c.Remote), c.ActorURI, c.InboxURI, c.OutboxURI,
		c.PublicKeyPem, c.WebPublicKey, c.WebPrivateKey, c.BackgroundImage, c.TopicCount, c.PostCount, toUnix(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (d *DB) UpdateCategory(c *domain.Category) error {
	_, err := d.conn.Exec(`
		UPDATE categories SET name = ?, slug = ?, description = ?, actor_uri = ?, inbox_uri = ?, outbox_uri = ?,
			public_key_pem = ?, background_image = ?
		WHERE cid = ?`,
		c.Name, c.Slug, c.Description, c.ActorURI, c.InboxURI, c.OutboxURI,
		c.PublicKeyPem, c.BackgroundImage, c.CID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

func (d *DB) ReadCategoryById(cid string) (error, *domain.Category) {
	row := d.conn.QueryRow(`
		SELECT cid, name, slug, description, remote, actor_uri, inbox_uri, outbox_uri,
			public_key_pem, web_public_key, web_private_key, background_image, topic_count, post_count, created_at
		FROM categories WHERE cid = ?`, cid)

	c := &domain.Category{}
	var remote int
	var createdAt int64
	err := row.Scan(&c.CID, &c.Name, &c.Slug, &c.Description, &remote, &c.ActorURI, &c.InboxURI, &c.OutboxURI,
		&c.PublicKeyPem, &c.WebPublicKey, &c.WebPrivateKey, &c.BackgroundImage, &c.TopicCount, &c.PostCount, &createdAt)
	if err != nil {
		return err, nil
	}
	c.Remote = remote != 0
	c.CreatedAt = fromUnix(createdAt)
	return nil, c
}

func (d *DB) CategoryExists(cid string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM categories WHERE cid = ?`, cid).Scan(&n)
	return n > 0, err
}

func (d *DB) DeleteCategory(cid string) error {
	_, err := d.conn.Exec(`DELETE FROM categories WHERE cid = ?`, cid)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// IncrCategoryCounters bumps the aggregate topic/post counters.
func (d *DB) IncrCategoryCounters(cid string, topics, posts int) error {
	_, err := d.conn.Exec(`
		UPDATE categories SET topic_count = topic_count + ?, post_count = post_count + ?
		WHERE cid = ?`, topics, posts, cid)
	if err != nil {
		return fmt.Errorf("failed to update category counters: %w", err)
	}
	return nil
}

func (d *DB) SetCategoryWatchState(uid, cid string, state domain.WatchState) error {
	_, err := d.conn.Exec(`
		INSERT INTO category_watchers (cid, uid, state) VALUES (?, ?, ?)
		ON CONFLICT(cid, uid) DO UPDATE SET state = excluded.state`,
		cid, uid, int(state))
	if err != nil {
		return fmt.Errorf("failed to set watch state: %w", err)
	}
	return nil
}

func (d *DB) ReadCategoryWatchers(cid string) (error, *[]domain.CategoryWatcher) {
	rows, err := d.conn.Query(`SELECT uid, state FROM category_watchers WHERE cid = ?`, cid)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	watchers := []domain.CategoryWatcher{}
	for rows.Next() {
		var w domain.CategoryWatcher
		var state int
		if err := rows.Scan(&w.UID, &state); err != nil {
			return err, nil
		}
		w.State = domain.WatchState(state)
		watchers = append(watchers, w)
	}
	return rows.Err(), &watchers
}

func (d *DB) CreateNotification(n *domain.Notification) error {
	_, err := d.conn.Exec(`
		INSERT INTO notifications (nid, uid, tid, from_uid, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(nid, uid) DO NOTHING`,
		n.NID, n.UID, n.TID, n.FromUID, n.Kind, toUnix(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (d *DB) NotificationExists(nid string, uid string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM notifications WHERE nid = ? AND uid = ?`, nid, uid).Scan(&n)
	return n > 0, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
