package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/services"
)

var (
	errPartialCredentials = errors.New("api_id and api_hash must be supplied together")
	errInvalidAPIID       = errors.New("api_id must be a positive integer")
	errBatchShape         = errors.New(`body must be {"items": [...]} or a bare [...] array`)
)

// flexInt decodes a JSON number or a decimal string. Values that are neither
// decode without error and read as invalid, so one bad batch item cannot
// reject the whole body.
type flexInt struct {
	n       int
	present bool
	ok      bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	*f = flexInt{present: true}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		f.present = false
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}
	if n, err := strconv.Atoi(s); err == nil {
		f.n, f.ok = n, true
	}
	return nil
}

// flexString decodes a JSON string or number into its text form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			*f = ""
			return nil
		}
		*f = flexString(n.String())
	}
	return nil
}

// credentials validates an optional api_id/api_hash pair. Both absent means
// "use the existing client" and yields nil.
func credentials(apiID flexInt, apiHash string) (*domain.Credentials, error) {
	apiHash = strings.TrimSpace(apiHash)
	switch {
	case !apiID.present && apiHash == "":
		return nil, nil
	case !apiID.present || apiHash == "":
		return nil, errPartialCredentials
	case !apiID.ok || apiID.n <= 0:
		return nil, errInvalidAPIID
	}
	return &domain.Credentials{APIID: apiID.n, APIHash: apiHash}, nil
}

// queryCredentials reads api_id/api_hash from the query string (GET routes).
func queryCredentials(c *gin.Context) (*domain.Credentials, error) {
	var id flexInt
	if raw, ok := c.GetQuery("api_id"); ok && strings.TrimSpace(raw) != "" {
		id.present = true
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			id.n, id.ok = n, true
		}
	}
	return credentials(id, c.Query("api_hash"))
}

// CredentialFields are the optional credentials accepted by POST bodies.
type CredentialFields struct {
	APIID   flexInt `json:"api_id"   swaggertype:"integer" example:"123456"`
	APIHash string  `json:"api_hash" example:"0123456789abcdef0123456789abcdef"`
}

func (f CredentialFields) credentials() (*domain.Credentials, error) {
	return credentials(f.APIID, f.APIHash)
}

// BatchItemRequest is one requested message. The chat may be given as
// recipientId or chat_id and the message as messageId or message_id; both
// accept JSON numbers or strings.
type BatchItemRequest struct {
	RecipientID  flexString `json:"recipientId" swaggertype:"string" example:"-1001234567890"`
	ChatID       flexString `json:"chat_id"     swaggertype:"string" example:"somechannel"`
	MessageID    flexInt    `json:"messageId"   swaggertype:"integer" example:"5"`
	MessageIDAlt flexInt    `json:"message_id"  swaggertype:"integer" example:"5"`
}

func (it BatchItemRequest) toService() services.BatchItem {
	ref := string(it.RecipientID)
	if ref == "" {
		ref = string(it.ChatID)
	}
	id := it.MessageID
	if !id.present {
		id = it.MessageIDAlt
	}
	var n int
	if id.ok {
		n = id.n
	}
	return services.BatchItem{ChatRef: ref, MessageID: n}
}

// BatchRequest is the object form of the batch body.
type BatchRequest struct {
	CredentialFields
	Items []BatchItemRequest `json:"items"`
}

// decodeBatch decodes the batch body union. The shape is chosen by the first
// JSON token: an object is a BatchRequest carrying its own credentials, an
// array is the bare item list and takes credentials from the query string.
func decodeBatch(c *gin.Context) ([]services.BatchItem, *domain.Credentials, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, nil, err
	}
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, nil, errBatchShape
	}

	var (
		items []json.RawMessage
		creds *domain.Credentials
	)
	switch body[0] {
	case '{':
		var req struct {
			CredentialFields
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, nil, errBatchShape
		}
		if creds, err = req.credentials(); err != nil {
			return nil, nil, err
		}
		items = req.Items
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, nil, errBatchShape
		}
		if creds, err = queryCredentials(c); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, errBatchShape
	}

	// Items are decoded one by one; an element that is not an item object
	// becomes the zero item, which the aggregator skips.
	out := make([]services.BatchItem, len(items))
	for i, raw := range items {
		var it BatchItemRequest
		if err := json.Unmarshal(raw, &it); err != nil {
			continue
		}
		out[i] = it.toService()
	}
	return out, creds, nil
}
