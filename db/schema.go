package db

const sqlCreateAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
	uid TEXT PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	web_public_key TEXT NOT NULL DEFAULT '',
	web_private_key TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT ''
);`

const sqlCreateRemoteUsersTable = `
CREATE TABLE IF NOT EXISTS remote_users (
	uid TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	handle TEXT NOT NULL,
	domain TEXT NOT NULL,
	actor_uri TEXT UNIQUE NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	inbox_uri TEXT NOT NULL,
	outbox_uri TEXT NOT NULL DEFAULT '',
	public_key_pem TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	last_fetched_at INTEGER NOT NULL
);`

const sqlCreateUserHandlesTable = `
CREATE TABLE IF NOT EXISTS user_handles (
	handle TEXT PRIMARY KEY,
	uid TEXT NOT NULL
);`

const sqlCreateUserSharesTable = `
CREATE TABLE IF NOT EXISTS user_shares (
	uid TEXT NOT NULL,
	tid TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (uid, tid)
);`

const sqlCreateCategoriesTable = `
CREATE TABLE IF NOT EXISTS categories (
	cid TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	remote INTEGER NOT NULL DEFAULT 0,
	actor_uri TEXT NOT NULL DEFAULT '',
	inbox_uri TEXT NOT NULL DEFAULT '',
	outbox_uri TEXT NOT NULL DEFAULT '',
	public_key_pem TEXT NOT NULL DEFAULT '',
	web_public_key TEXT NOT NULL DEFAULT '',
	web_private_key TEXT NOT NULL DEFAULT '',
	background_image TEXT NOT NULL DEFAULT '',
	topic_count INTEGER NOT NULL DEFAULT 0,
	post_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);`

const sqlCreateCategoryHandlesTable = `
CREATE TABLE IF NOT EXISTS category_handles (
	handle TEXT PRIMARY KEY,
	cid TEXT NOT NULL
);`

const sqlCreateRemoteCategoryMarkersTable = `
CREATE TABLE IF NOT EXISTS remote_category_markers (
	cid TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);`

const sqlCreateTopicsTable = `
CREATE TABLE IF NOT EXISTS topics (
	tid TEXT PRIMARY KEY,
	cid TEXT NOT NULL,
	uid TEXT NOT NULL,
	main_pid TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	slug TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);`

const sqlCreatePostsTable = `
CREATE TABLE IF NOT EXISTS posts (
	pid TEXT PRIMARY KEY,
	tid TEXT NOT NULL,
	uid TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	remote INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL,
	edited_at INTEGER
);`

const sqlCreatePostRecipientsTable = `
CREATE TABLE IF NOT EXISTS post_recipients (
	pid TEXT NOT NULL,
	uid TEXT NOT NULL,
	PRIMARY KEY (pid, uid)
);`

const sqlCreateTopicRecipientsTable = `
CREATE TABLE IF NOT EXISTS topic_recipients (
	tid TEXT NOT NULL,
	uid TEXT NOT NULL,
	PRIMARY KEY (tid, uid)
);`

const sqlCreateInboxTable = `
CREATE TABLE IF NOT EXISTS inbox (
	uid TEXT NOT NULL,
	tid TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (uid, tid)
);`

const sqlCreateCategoryWatchersTable = `
CREATE TABLE IF NOT EXISTS category_watchers (
	cid TEXT NOT NULL,
	uid TEXT NOT NULL,
	state INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (cid, uid)
);`

const sqlCreateNotificationsTable = `
CREATE TABLE IF NOT EXISTS notifications (
	nid TEXT NOT NULL,
	uid TEXT NOT NULL,
	tid TEXT NOT NULL DEFAULT '',
	from_uid TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	PRIMARY KEY (nid, uid)
);`

const sqlCreateRoomsTable = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_uid TEXT NOT NULL,
	participant_key TEXT UNIQUE NOT NULL,
	created_at INTEGER NOT NULL
);`

const sqlCreateDeliveryQueueTable = `
CREATE TABLE IF NOT EXISTS delivery_queue (
	id TEXT PRIMARY KEY,
	inbox_uri TEXT NOT NULL,
	actor_uri TEXT NOT NULL DEFAULT '',
	activity_json TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	next_retry_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);`

const sqlCreateSequencesTable = `
CREATE TABLE IF NOT EXISTS sequences (
	name TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);`

const sqlCreateIndices = `
CREATE INDEX IF NOT EXISTS idx_topics_cid ON topics(cid);
CREATE INDEX IF NOT EXISTS idx_posts_tid ON posts(tid);
CREATE INDEX IF NOT EXISTS idx_inbox_tid ON inbox(tid);
CREATE INDEX IF NOT EXISTS idx_delivery_retry ON delivery_queue(next_retry_at);
CREATE INDEX IF NOT EXISTS idx_shares_uid ON user_shares(uid);
`

var allTables = []string{
	sqlCreateAccountsTable,
	sqlCreateRemoteUsersTable,
	sqlCreateUserHandlesTable,
	sqlCreateUserSharesTable,
	sqlCreateCategoriesTable,
	sqlCreateCategoryHandlesTable,
	sqlCreateRemoteCategoryMarkersTable,
	sqlCreateTopicsTable,
	sqlCreatePostsTable,
	sqlCreatePostRecipientsTable,
	sqlCreateTopicRecipientsTable,
	sqlCreateInboxTable,
	sqlCreateCategoryWatchersTable,
	sqlCreateNotificationsTable,
	sqlCreateRoomsTable,
	sqlCreateDeliveryQueueTable,
	sqlCreateSequencesTable,
	sqlCreateIndices,
}
