package activitypub

import (
	"bytes"
	"context"
	"crypto/rsa"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mammutbb/mammut/domain"
	"github.com/mammutbb/mammut/util"
)

const (
	maxDeliveryAttempts = 5
	deliveryBatchSize   = 20
)

// Deliverer drains the delivery queue: each due item is signed with the
// originating actor's key and posted to the target inbox. Failures back
// off exponentially and are dropped after maxDeliveryAttempts.
type Deliverer struct {
	db     Database
	conf   *util.AppConfig
	client HTTPClient
}

func NewDeliverer(database Database, conf *util.AppConfig) *Deliverer {
	return NewDelivererWithClient(database, conf, NewDefaultHTTPClient(time.Duration(conf.Conf.FetchTimeoutSecs)*time.Second))
}

func NewDelivererWithClient(database Database, conf *util.AppConfig, client HTTPClient) *Deliverer {
	return &Deliverer{db: database, conf: conf, client: client}
}

// Run processes the queue on the given interval until ctx is cancelled.
func (dl *Deliverer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dl.ProcessQueue(ctx); err != nil {
				log.Printf("delivery queue pass failed: %v", err)
			}
		}
	}
}

// ProcessQueue delivers one batch of due items.
func (dl *Deliverer) ProcessQueue(ctx context.Context) error {
	err, due := dl.db.ReadDueDeliveries(time.Now(), deliveryBatchSize)
	if err != nil {
		return fmt.Errorf("read due deliveries: %w", err)
	}
	for i := range *due {
		item := &(*due)[i]
		if err := dl.deliver(ctx, item); err != nil {
			dl.retryOrDrop(item, err)
			continue
		}
		if err := dl.db.DeleteDelivery(item.Id); err != nil {
			log.Printf("removing delivered item %s failed: %v", item.Id, err)
		}
	}
	return nil
}

func (dl *Deliverer) deliver(ctx context.Context, item *domain.DeliveryQueueItem) error {
	key, keyID, err := dl.signingKey(item.ActorURI)
	if err != nil {
		return err
	}
	body := []byte(item.ActivityJSON)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, item.InboxURI, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", util.Name+"/1.0 ActivityPub")
	if err := SignRequest(req, key, keyID, body); err != nil {
		return err
	}
	resp, err := dl.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", item.InboxURI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post to %s: unexpected status %d", item.InboxURI, resp.StatusCode)
	}
	return nil
}

// signingKey loads the private key of the local actor the item was sent
// as. Only user actors (/uid/<uid>) originate deliveries.
func (dl *Deliverer) signingKey(actorURI string) (key *rsa.PrivateKey, keyID string, err error) {
	base := dl.conf.BaseURL() + "/uid/"
	if !strings.HasPrefix(actorURI, base) {
		return nil, "", fmt.Errorf("no signing key for actor %s", actorURI)
	}
	uid := strings.TrimPrefix(actorURI, base)
	readErr, account := dl.db.ReadAccountById(uid)
	if readErr != nil {
		return nil, "", fmt.Errorf("read account %s: %w", uid, readErr)
	}
	parsed, err := util.ParsePrivateKey(account.WebPrivateKey)
	if err != nil {
		return nil, "", fmt.Errorf("key of account %s: %w", uid, err)
	}
	return parsed, actorURI + "#main-key", nil
}

func (dl *Deliverer) retryOrDrop(item *domain.DeliveryQueueItem, cause error) {
	item.Attempts++
	if item.Attempts >= maxDeliveryAttempts {
		log.Printf("dropping delivery %s to %s after %d attempts: %v", item.Id, item.InboxURI, item.Attempts, cause)
		if err := dl.db.DeleteDelivery(item.Id); err != nil {
			log.Printf("dropping delivery %s failed: %v", item.Id, err)
		}
		return
	}
	item.NextRetryAt = time.Now().Add(backoff(item.Attempts))
	log.Printf("delivery %s to %s failed (attempt %d), retrying at %s: %v",
		item.Id, item.InboxURI, item.Attempts, item.NextRetryAt.Format(time.RFC3339), cause)
	if err := dl.db.UpdateDelivery(item); err != nil {
		log.Printf("rescheduling delivery %s failed: %v", item.Id, err)
	}
}

func backoff(attempts int) time.Duration {
	d := time.Minute << (attempts - 1)
	if d > 30*time.Minute {
		return 30 * time.Minute
	}
	return d
}
