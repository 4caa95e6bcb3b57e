package calendly

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// SignatureHeader is the header Calendly signs webhook deliveries with.
const SignatureHeader = "Calendly-Webhook-Signature"

// Webhook event types delivered to subscriptions.
const (
	EventInviteeCreated  = "invitee.created"
	EventInviteeCanceled = "invitee.canceled"
)

// WebhookPayload is the body of a webhook delivery.
type WebhookPayload struct {
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	Payload   struct {
		Name      string `json:"name"`
		Email     string `json:"email"`
		Status    string `json:"status"`
		Event     string `json:"event"` // scheduled event URI
		EventType struct {
			Name string `json:"name"`
		} `json:"event_type"`
		ScheduledEvent struct {
			URI       string    `json:"uri"`
			Name      string    `json:"name"`
			StartTime time.Time `json:"start_time"`
		} `json:"scheduled_event"`
	} `json:"payload"`
}

// ParseWebhook decodes a webhook payload body.
func ParseWebhook(body []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrap(err, "calendly: parse webhook payload")
	}
	if p.Event == "" {
		return nil, eris.New("calendly: webhook payload missing event type")
	}
	return &p, nil
}

// VerifySignature checks a delivery's signature header against the signing
// key. The header carries a timestamp and an HMAC-SHA256 of
// "<timestamp>.<body>"; deliveries older than tolerance are rejected to
// block replays.
func VerifySignature(signingKey, header string, body []byte, tolerance time.Duration) error {
	if signingKey == "" {
		return eris.New("calendly: signing key not configured")
	}

	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return eris.New("calendly: malformed signature header")
	}

	epoch, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return eris.Wrap(err, "calendly: parse signature timestamp")
	}
	if tolerance > 0 {
		age := time.Since(time.Unix(epoch, 0))
		if age > tolerance || age < -tolerance {
			return eris.New("calendly: signature timestamp outside tolerance")
		}
	}

	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return eris.New("calendly: signature mismatch")
	}
	return nil
}
