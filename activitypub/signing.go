package activitypub

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"time"

	"code.superseriousbusiness.org/httpsig"
)

// SignRequest signs an outbound request with the actor's key, covering
// the request target, host, date and body digest. keyID must be the
// actor's key URI (actor URI plus #main-key).
func SignRequest(req *http.Request, key *rsa.PrivateKey, keyID string, body []byte) error {
	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if req.Header.Get("Host") == "" {
		req.Header.Set("Host", req.URL.Host)
	}
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		[]string{httpsig.RequestTarget, "host", "date", "digest"},
		httpsig.Signature,
		120,
	)
	if err != nil {
		return fmt.Errorf("construct signer: %w", err)
	}
	if err := signer.SignRequest(key, keyID, req, body); err != nil {
		return fmt.Errorf("sign request to %s: %w", req.URL, err)
	}
	return nil
}
