package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mammutbb/mammut/domain"
)

func (d *DB) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	_, err := d.conn.Exec(`
		INSERT INTO delivery_queue (id, inbox_uri, actor_uri, activity_json, attempts, next_retry_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.Id.String(), item.InboxURI, item.ActorURI, item.ActivityJSON,
		item.Attempts, toUnix(item.NextRetryAt), toUnix(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to enqueue delivery: %w", err)
	}
	return nil
}

func (d *DB) ReadDueDeliveries(now time.Time, limit int) (error, *[]domain.DeliveryQueueItem) {
	rows, err := d.conn.Query(`
		SELECT id, inbox_uri, actor_uri, activity_json, attempts, next_retry_at, created_at
		FROM delivery_queue WHERE next_retry_at <= ? ORDER BY next_retry_at ASC LIMIT ?`,
		toUnix(now), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	items := []domain.DeliveryQueueItem{}
	for rows.Next() {
		var item domain.DeliveryQueueItem
		var id string
		var retryAt, createdAt int64
		if err := rows.Scan(&id, &item.InboxURI, &item.ActorURI, &item.ActivityJSON,
			&item.Attempts, &retryAt, &createdAt); err != nil {
			return err, nil
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return err, nil
		}
		item.Id = parsed
		item.NextRetryAt = fromUnix(retryAt)
		item.CreatedAt = fromUnix(createdAt)
		items = append(items, item)
	}
	return rows.Err(), &items
}

func (d *DB) UpdateDelivery(item *domain.DeliveryQueueItem) error {
	_, err := d.conn.Exec(`
		UPDATE delivery_queue SET attempts = ?, next_retry_at = ? WHERE id = ?`,
		item.Attempts, toUnix(item.NextRetryAt), item.Id.String())
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}
	return nil
}

func (d *DB) DeleteDelivery(id uuid.UUID) error {
	_, err := d.conn.Exec(`DELETE FROM delivery_queue WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete delivery: %w", err)
	}
	return nil
}
