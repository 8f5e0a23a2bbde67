// Package redact implements the PII redaction pass applied to every inbound
// message before anything is handed to the model provider. It is a pure
// transformation: no state, no side effects.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

// DigestLength is the number of hex characters kept from the SHA-256 digest
// that replaces a sensitive value. Equal cleartext values under the same
// salt produce equal digests, so correlation survives redaction without
// disclosure.
const DigestLength = 16

// defaultSensitiveFields is the built-in sensitive-field set. It can be
// replaced wholesale by the policy file at startup.
var defaultSensitiveFields = []string{
	"email", "first_name", "last_name", "phone", "viewer_ip",
	"viewer_profile_id", "profile_id", "user_id", "nombre",
	"apellido", "telefono", "direccion", "ciudad", "pais",
}

// DefaultFields returns a copy of the built-in sensitive-field set.
func DefaultFields() []string {
	out := make([]string, len(defaultSensitiveFields))
	copy(out, defaultSensitiveFields)
	return out
}

// Redactor replaces values under sensitive keys with deterministic digests.
// The sensitive set and salt are fixed at construction; a Redactor is safe
// for concurrent use.
type Redactor struct {
	sensitive map[string]struct{}
	salt      string
}

// New creates a Redactor over the given sensitive-field set. An empty set
// falls back to the built-in defaults. The salt versions the digest space:
// changing it breaks correlation with previously redacted data.
func New(fields []string, salt string) *Redactor {
	if len(fields) == 0 {
		fields = defaultSensitiveFields
	}
	sensitive := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		sensitive[f] = struct{}{}
	}
	return &Redactor{sensitive: sensitive, salt: salt}
}

// Sensitive reports whether key is in the configured sensitive-field set.
func (r *Redactor) Sensitive(key string) bool {
	_, ok := r.sensitive[key]
	return ok
}

// Digest returns the fixed-length digest standing in for value. The digest
// is derived from the value's string representation, prefixed by the salt.
func (r *Redactor) Digest(value any) string {
	sum := sha256.Sum256([]byte(r.salt + fmt.Sprintf("%v", value)))
	return hex.EncodeToString(sum[:])[:DigestLength]
}

// Redact walks the bag and returns a copy with every non-empty value under a
// sensitive key replaced by its digest. Nested bags and slices of bags are
// recursed; scalar slice elements and non-sensitive values pass through
// unchanged. Empty sensitive values are left as-is: there is no data to
// disclose, and hashing the empty string would only manufacture a fake
// correlation between every lead with a missing field.
func (r *Redactor) Redact(data models.Bag) models.Bag {
	if data == nil {
		return nil
	}
	out := make(models.Bag, len(data))
	for key, value := range data {
		out[key] = r.redactValue(key, value)
	}
	return out
}

func (r *Redactor) redactValue(key string, value any) any {
	if r.Sensitive(key) && !isEmpty(value) {
		return r.Digest(value)
	}
	switch v := value.(type) {
	case models.Bag:
		return r.Redact(v)
	case map[string]any:
		return r.Redact(models.Bag(v))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			switch nested := item.(type) {
			case models.Bag:
				out[i] = r.Redact(nested)
			case map[string]any:
				out[i] = r.Redact(models.Bag(nested))
			default:
				out[i] = item
			}
		}
		return out
	default:
		return value
	}
}

// RedactContent runs the redaction pass over a message body keyed as
// "content". With the default policy the body passes through untouched, but
// a policy that marks content itself sensitive applies here too.
func (r *Redactor) RedactContent(content string) string {
	out := r.Redact(models.Bag{"content": content})
	if s, ok := out["content"].(string); ok {
		return s
	}
	return content
}

// isEmpty reports whether a value carries no redactable data: nil, empty
// string, or numeric zero.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case int:
		return v == 0
	case int64:
		return v == 0
	case float64:
		return v == 0
	case bool:
		return !v
	default:
		return false
	}
}
