package db

import (
	"fmt"
	"time"

	"github.com/mammutbb/mammut/domain"
)

func (d *DB) CreateRemoteUser(u *domain.RemoteUser) error {
	_, err := d.conn.Exec(`
		INSERT INTO remote_users (uid, username, handle, domain, actor_uri, url, display_name, summary,
			inbox_uri, outbox_uri, public_key_pem, avatar_url, last_fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UID, u.Username, u.Handle, u.Domain, u.ActorURI, u.URL, u.DisplayName, u.Summary,
		u.InboxURI, u.OutboxURI, u.PublicKeyPem, u.AvatarURL, toUnix(u.LastFetchedAt))
	if err != nil {
		return fmt.Errorf("failed to create remote user: %w", err)
	}
	return nil
}

func (d *DB) UpdateRemoteUser(u *domain.RemoteUser) error {
	_, err := d.conn.Exec(`
		UPDATE remote_users SET username = ?, handle = ?, domain = ?, url = ?, display_name = ?,
			summary = ?, inbox_uri = ?, outbox_uri = ?, public_key_pem = ?, avatar_url = ?, last_fetched_at = ?
		WHERE uid = ?`,
		u.Username, u.Handle, u.Domain, u.URL, u.DisplayName,
		u.Summary, u.InboxURI, u.OutboxURI, u.PublicKeyPem, u.AvatarURL, toUnix(u.LastFetchedAt),
		u.UID)
	if err != nil {
		return fmt.Errorf("failed to update remote user: %w", err)
	}
	return nil
}

func (d *DB) ReadRemoteUserByURI(uri string) (error, *domain.RemoteUser) {
	row := d.conn.QueryRow(`
		SELECT uid, username, handle, domain, actor_uri, url, display_name, summary,
			inbox_uri, outbox_uri, public_key_pem, avatar_url, last_fetched_at
		FROM remote_users WHERE actor_uri = ?`, uri)

	u := &domain.RemoteUser{}
	var fetchedAt int64
	err := row.Scan(&u.UID, &u.Username, &u.Handle, &u.Domain, &u.ActorURI, &u.URL, &u.DisplayName, &u.Summary,
		&u.InboxURI, &u.OutboxURI, &u.PublicKeyPem, &u.AvatarURL, &fetchedAt)
	if err != nil {
		return err, nil
	}
	u.LastFetchedAt = fromUnix(fetchedAt)
	return nil, u
}

func (d *DB) RemoteUserExists(uri string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM remote_users WHERE actor_uri = ?`, uri).Scan(&n)
	return n > 0, err
}

func (d *DB) DeleteRemoteUser(uri string) error {
	_, err := d.conn.Exec(`DELETE FROM remote_users WHERE actor_uri = ?`, uri)
	if err != nil {
		return fmt.Errorf("failed to delete remote user: %w", err)
	}
	return nil
}

func (d *DB) SetUserHandle(handle, uid string) error {
	_, err := d.conn.Exec(`
		INSERT INTO user_handles (handle, uid) VALUES (?, ?)
		ON CONFLICT(handle) DO UPDATE SET uid = excluded.uid`, handle, uid)
	if err != nil {
		return fmt.Errorf("failed to set user handle: %w", err)
	}
	return nil
}

func (d *DB) ReadUIDByUserHandle(handle string) (string, error) {
	var uid string
	err := d.conn.QueryRow(`SELECT uid FROM user_handles WHERE handle = ?`, handle).Scan(&uid)
	return uid, err
}

func (d *DB) HasUserHandle(handle string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM user_handles WHERE handle = ?`, handle).Scan(&n)
	return n > 0, err
}

func (d *DB) DeleteUserHandle(handle string) error {
	_, err := d.conn.Exec(`DELETE FROM user_handles WHERE handle = ?`, handle)
	if err != nil {
		return fmt.Errorf("failed to delete user handle: %w", err)
	}
	return nil
}

// AddUserShare records that an actor shared (authored or boosted) a topic.
func (d *DB) AddUserShare(uid, tid string, at time.Time) error {
	_, err := d.conn.Exec(`
		INSERT INTO user_shares (uid, tid, created_at) VALUES (?, ?, ?)
		ON CONFLICT(uid, tid) DO NOTHING`, uid, tid, toUnix(at))
	if err != nil {
		return fmt.Errorf("failed to add share: %w", err)
	}
	return nil
}

func (d *DB) CountUserShares(uid string) (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM user_shares WHERE uid = ?`, uid).Scan(&n)
	return n, err
}

func (d *DB) DeleteUserShares(uid string) error {
	_, err := d.conn.Exec(`DELETE FROM user_shares WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete shares: %w", err)
	}
	return nil
}

func (d *DB) SetCategoryHandle(handle, cid string) error {
	_, err := d.conn.Exec(`
		INSERT INTO category_handles (handle, cid) VALUES (?, ?)
		ON CONFLICT(handle) DO UPDATE SET cid = excluded.cid`, handle, cid)
	if err != nil {
		return fmt.Errorf("failed to set category handle: %w", err)
	}
	return nil
}

func (d *DB) HasCategoryHandle(handle string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM category_handles WHERE handle = ?`, handle).Scan(&n)
	return n > 0, err
}

func (d *DB) DeleteCategoryHandle(handle string) error {
	_, err := d.conn.Exec(`DELETE FROM category_handles WHERE handle = ?`, handle)
	if err != nil {
		return fmt.Errorf("failed to delete category handle: %w", err)
	}
	return nil
}

// SetRemoteCategoryMarker records that a category is a federation mirror.
// The marker is the federation-specific existence record, distinct from
// the generic categories row.
func (d *DB) SetRemoteCategoryMarker(cid string) error {
	_, err := d.conn.Exec(`
		INSERT INTO remote_category_markers (cid, created_at) VALUES (?, ?)
		ON CONFLICT(cid) DO NOTHING`, cid, toUnix(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set remote category marker: %w", err)
	}
	return nil
}

func (d *DB) HasRemoteCategoryMarker(cid string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM remote_category_markers WHERE cid = ?`, cid).Scan(&n)
	return n > 0, err
}

func (d *DB) DeleteRemoteCategoryMarker(cid string) error {
	_, err := d.conn.Exec(`DELETE FROM remote_category_markers WHERE cid = ?`, cid)
	if err != nil {
		return fmt.Errorf("failed to delete remote category marker: %w", err)
	}
	return nil
}
