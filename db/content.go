package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mammutbb/mammut/domain"
)

func (d *DB) CreateTopic(t *domain.Topic) error {
	_, err := d.conn.Exec(`
		INSERT INTO topics (tid, cid, uid, main_pid, title, slug, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.TID, t.CID, t.UID, t.MainPID, t.Title, t.Slug, toUnix(t.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}

func (d *DB) ReadTopic(tid string) (error, *domain.Topic) {
	row := d.conn.QueryRow(`
		SELECT tid, cid, uid, main_pid, title, slug, timestamp FROM topics WHERE tid = ?`, tid)

	t := &domain.Topic{}
	var ts int64
	err := row.Scan(&t.TID, &t.CID, &t.UID, &t.MainPID, &t.Title, &t.Slug, &ts)
	if err != nil {
		return err, nil
	}
	t.Timestamp = fromUnix(ts)
	return nil, t
}

func (d *DB) ReadTopicBySlug(slug string) (error, *domain.Topic) {
	row := d.conn.QueryRow(`
		SELECT tid, cid, uid, main_pid, title, slug, timestamp FROM topics WHERE slug = ?`, slug)

	t := &domain.Topic{}
	var ts int64
	err := row.Scan(&t.TID, &t.CID, &t.UID, &t.MainPID, &t.Title, &t.Slug, &ts)
	if err != nil {
		return err, nil
	}
	t.Timestamp = fromUnix(ts)
	return nil, t
}

func (d *DB) TopicExists(tid string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM topics WHERE tid = ?`, tid).Scan(&n)
	return n > 0, err
}

func (d *DB) DeleteTopic(tid string) error {
	_, err := d.conn.Exec(`DELETE FROM topics WHERE tid = ?`, tid)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	return nil
}

func scanPost(scan func(dest ...any) error) (error, *domain.Post) {
	p := &domain.Post{}
	var remote int
	var ts int64
	var editedAt sql.NullInt64
	err := scan(&p.PID, &p.TID, &p.UID, &p.Content, &remote, &ts, &editedAt)
	if err != nil {
		return err, nil
	}
	p.Remote = remote != 0
	p.Timestamp = fromUnix(ts)
	if editedAt.Valid {
		t := fromUnix(editedAt.Int64)
		p.EditedAt = &t
	}
	return nil, p
}

func (d *DB) CreatePost(p *domain.Post) error {
	_, err := d.conn.Exec(`
		INSERT INTO posts (pid, tid, uid, content, remote, timestamp, edited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PID, p.TID, p.UID, p.Content, boolToInt(p.Remote), toUnix(p.Timestamp), nullableUnix(p.EditedAt))
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (d *DB) UpdatePost(p *domain.Post) error {
	_, err := d.conn.Exec(`
		UPDATE posts SET content = ?, edited_at = ? WHERE pid = ?`,
		p.Content, nullableUnix(p.EditedAt), p.PID)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

func (d *DB) ReadPost(pid string) (error, *domain.Post) {
	row := d.conn.QueryRow(`
		SELECT pid, tid, uid, content, remote, timestamp, edited_at FROM posts WHERE pid = ?`, pid)
	return scanPost(row.Scan)
}

func (d *DB) PostExists(pid string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM posts WHERE pid = ?`, pid).Scan(&n)
	return n > 0, err
}

func (d *DB) ReadPostsByTopic(tid string) (error, *[]domain.Post) {
	rows, err := d.conn.Query(`
		SELECT pid, tid, uid, content, remote, timestamp, edited_at
		FROM posts WHERE tid = ? ORDER BY timestamp ASC`, tid)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		err, p := scanPost(rows.Scan)
		if err != nil {
			return err, nil
		}
		posts = append(posts, *p)
	}
	return rows.Err(), &posts
}

func (d *DB) DeletePost(pid string) error {
	_, err := d.conn.Exec(`DELETE FROM posts WHERE pid = ?`, pid)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

func (d *DB) AddPostRecipients(pid string, uids []string) error {
	for _, uid := range uids {
		_, err := d.conn.Exec(`
			INSERT INTO post_recipients (pid, uid) VALUES (?, ?)
			ON CONFLICT(pid, uid) DO NOTHING`, pid, uid)
		if err != nil {
			return fmt.Errorf("failed to add post recipient: %w", err)
		}
	}
	return nil
}

func (d *DB) ReadPostRecipients(pid string) (error, *[]string) {
	return d.readStrings(`SELECT uid FROM post_recipients WHERE pid = ?`, pid)
}

func (d *DB) IsPostRecipient(pid, uid string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM post_recipients WHERE pid = ? AND uid = ?`, pid, uid).Scan(&n)
	return n > 0, err
}

func (d *DB) DeletePostRecipients(pid string) error {
	_, err := d.conn.Exec(`DELETE FROM post_recipients WHERE pid = ?`, pid)
	if err != nil {
		return fmt.Errorf("failed to delete post recipients: %w", err)
	}
	return nil
}

// SetTopicRecipients replaces the materialized topic recipient union.
func (d *DB) SetTopicRecipients(tid string, uids []string) error {
	if _, err := d.conn.Exec(`DELETE FROM topic_recipients WHERE tid = ?`, tid); err != nil {
		return fmt.Errorf("failed to clear topic recipients: %w", err)
	}
	for _, uid := range uids {
		_, err := d.conn.Exec(`INSERT INTO topic_recipients (tid, uid) VALUES (?, ?)`, tid, uid)
		if err != nil {
			return fmt.Errorf("failed to add topic recipient: %w", err)
		}
	}
	return nil
}

func (d *DB) ReadTopicRecipients(tid string) (error, *[]string) {
	return d.readStrings(`SELECT uid FROM topic_recipients WHERE tid = ?`, tid)
}

func (d *DB) AddToInbox(uid, tid string, at time.Time) error {
	_, err := d.conn.Exec(`
		INSERT INTO inbox (uid, tid, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(uid, tid) DO UPDATE SET updated_at = excluded.updated_at`,
		uid, tid, toUnix(at))
	if err != nil {
		return fmt.Errorf("failed to add inbox entry: %w", err)
	}
	return nil
}

func (d *DB) RemoveFromInbox(uid, tid string) error {
	_, err := d.conn.Exec(`DELETE FROM inbox WHERE uid = ? AND tid = ?`, uid, tid)
	if err != nil {
		return fmt.Errorf("failed to remove inbox entry: %w", err)
	}
	return nil
}

func (d *DB) IsInInbox(uid, tid string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM inbox WHERE uid = ? AND tid = ?`, uid, tid).Scan(&n)
	return n > 0, err
}

// ReadInboxUsersByTopic returns every user whose inbox references tid.
func (d *DB) ReadInboxUsersByTopic(tid string) (error, *[]string) {
	return d.readStrings(`SELECT uid FROM inbox WHERE tid = ?`, tid)
}

// ReadInbox returns a user's inbox topic ids, most recent first.
func (d *DB) ReadInbox(uid string) (error, *[]string) {
	return d.readStrings(`SELECT tid FROM inbox WHERE uid = ? ORDER BY updated_at DESC`, uid)
}

func (d *DB) readStrings(query string, args ...any) (error, *[]string) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return err, nil
		}
		out = append(out, s)
	}
	return rows.Err(), &out
}

func (d *DB) ReadRoomByParticipantKey(key string) (error, *domain.Room) {
	row := d.conn.QueryRow(`
		SELECT room_id, owner_uid, participant_key, created_at FROM rooms WHERE participant_key = ?`, key)

	r := &domain.Room{}
	var createdAt int64
	err := row.Scan(&r.RoomID, &r.OwnerUID, &r.ParticipantKey, &createdAt)
	if err != nil {
		return err, nil
	}
	r.CreatedAt = fromUnix(createdAt)
	return nil, r
}

// CreateRoom inserts a private conversation room and fills in its id.
func (d *DB) CreateRoom(r *domain.Room) error {
	err := d.conn.QueryRow(`
		INSERT INTO rooms (owner_uid, participant_key, created_at) VALUES (?, ?, ?)
		RETURNING room_id`,
		r.OwnerUID, r.ParticipantKey, toUnix(r.CreatedAt)).Scan(&r.RoomID)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}
