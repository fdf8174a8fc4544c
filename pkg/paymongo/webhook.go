package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "Paymongo-Signature"

	EventLinkPaymentPaid = "link.payment.paid"
	EventPaymentPaid     = "payment.paid"
	EventPaymentFailed   = "payment.failed"

	defaultSignatureTolerance = 5 * time.Minute
)

var (
	ErrInvalidSignature = errors.New("invalid paymongo signature")
	ErrStaleSignature   = errors.New("paymongo signature timestamp outside tolerance")
)

// Event is a decoded webhook delivery. Resource holds the raw nested object
// (a link for link.payment.paid).
type Event struct {
	ID         string
	Type       string
	Livemode   bool
	ResourceID string
	Resource   json.RawMessage
}

type eventEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type     string `json:"type"`
			Livemode bool   `json:"livemode"`
			Data     struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

type resourceEnvelope struct {
	Data struct {
		Attributes struct {
			Data json.RawMessage `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseEvent decodes the webhook body without verifying it.
func ParseEvent(body []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Data.ID == "" || env.Data.Attributes.Type == "" {
		return nil, errors.New("webhook event missing id or type")
	}
	var raw resourceEnvelope
	_ = json.Unmarshal(body, &raw)
	return &Event{
		ID:         env.Data.ID,
		Type:       env.Data.Attributes.Type,
		Livemode:   env.Data.Attributes.Livemode,
		ResourceID: env.Data.Attributes.Data.ID,
		Resource:   raw.Data.Attributes.Data,
	}, nil
}

// Verifier checks the Paymongo-Signature header:
// t=<unix>,te=<test hmac>,li=<live hmac> where hmac = HMAC-SHA256(secret, t + "." + body).
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("paymongo webhook secret is required")
	}
	return &Verifier{secret: []byte(secret), tolerance: defaultSignatureTolerance, now: time.Now}, nil
}

// Verify validates header against body. livemode picks which signature
// component is compared.
func (v *Verifier) Verify(header string, body []byte, livemode bool) error {
	parts := parseSignatureHeader(header)
	ts, ok := parts["t"]
	if !ok {
		return ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(unix, 0))
		if age > v.tolerance || age < -v.tolerance {
			return ErrStaleSignature
		}
	}

	key := "te"
	if livemode {
		key = "li"
	}
	got, err := hex.DecodeString(parts[key])
	if err != nil || len(got) == 0 {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, v.sign(ts, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces a header value for body at ts; used by tests and local tooling.
func (v *Verifier) Sign(ts time.Time, body []byte, livemode bool) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	sig := hex.EncodeToString(v.sign(t, body))
	if livemode {
		return "t=" + t + ",te=,li=" + sig
	}
	return "t=" + t + ",te=" + sig + ",li="
}

func (v *Verifier) sign(ts string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok {
			out[k] = val
		}
	}
	return out
}
