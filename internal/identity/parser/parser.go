// Package parser turns raw scanned or pasted payloads into normalized
// attribute sets. Parsing never fails: input that matches no known format
// degrades to an identifier-only set.
package parser

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"idem/internal/identity/models"
	dErrors "idem/pkg/domain-errors"
	"idem/pkg/email"
)

// Alias tables, in precedence order. The first present key with a usable
// value wins; every alias key counts as mapped and stays out of
// AdditionalData.
var (
	nameAliases       = []string{"name", "displayName", "fullName"}
	emailAliases      = []string{"email", "emailAddress"}
	phoneAliases      = []string{"phone", "phoneNumber", "mobile"}
	identifierAliases = []string{"id", "identifier", "userId"}
)

const (
	minPayloadLength = 10

	identityPrefix = "identity:"
	userPrefix     = "user:"
)

// Parse converts a raw payload into an AttributeSet. JSON objects are mapped
// through the alias tables; everything else runs through string heuristics in
// fixed order. Unparsable input yields {Identifier: raw}.
func Parse(raw string) models.AttributeSet {
	trimmed := strings.TrimSpace(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return fromObject(obj)
	}

	switch {
	case strings.HasPrefix(trimmed, identityPrefix):
		return fromEmailFormat(strings.TrimPrefix(trimmed, identityPrefix))
	case strings.HasPrefix(trimmed, userPrefix):
		return fromEmailFormat(strings.TrimPrefix(trimmed, userPrefix))
	case strings.Contains(trimmed, "@"):
		return fromEmailFormat(trimmed)
	default:
		return models.AttributeSet{Identifier: raw}
	}
}

// Validate is the pre-flight gate for raw payloads, decided before any parse
// is attempted. It rejects empty or too-short input and input that is neither
// a JSON object carrying a name/id/identifier field nor a string containing a
// recognizable identity marker.
func Validate(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return dErrors.New(dErrors.CodeValidation, "payload is empty")
	}
	if len(trimmed) < minPayloadLength {
		return dErrors.Newf(dErrors.CodeValidation, "payload too short: minimum %d characters", minPayloadLength)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		for _, key := range []string{"name", "id", "identifier"} {
			if _, ok := obj[key]; ok {
				return nil
			}
		}
		return dErrors.New(dErrors.CodeValidation, "JSON payload has no name, id, or identifier field")
	}

	if strings.Contains(trimmed, "@") ||
		strings.Contains(trimmed, identityPrefix) ||
		strings.Contains(trimmed, userPrefix) {
		return nil
	}

	return dErrors.New(dErrors.CodeValidation, "payload has no recognizable identity format")
}

func fromObject(obj map[string]any) models.AttributeSet {
	attrs := models.AttributeSet{
		Name:       firstAlias(obj, nameAliases),
		Email:      firstAlias(obj, emailAliases),
		Phone:      firstAlias(obj, phoneAliases),
		Identifier: firstAlias(obj, identifierAliases),
	}

	mapped := make(map[string]struct{}, len(nameAliases)+len(emailAliases)+len(phoneAliases)+len(identifierAliases))
	for _, aliases := range [][]string{nameAliases, emailAliases, phoneAliases, identifierAliases} {
		for _, key := range aliases {
			mapped[key] = struct{}{}
		}
	}

	var extra map[string]any
	for key, value := range obj {
		if _, ok := mapped[key]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = value
	}
	attrs.AdditionalData = extra

	return attrs
}

// fromEmailFormat handles `Name <email>` and bare address strings.
func fromEmailFormat(s string) models.AttributeSet {
	name, address := email.ParseAddress(s)
	return models.AttributeSet{Name: name, Email: address}
}

func firstAlias(obj map[string]any, aliases []string) string {
	for _, key := range aliases {
		if value, ok := obj[key]; ok {
			if s := scalarString(value); s != "" {
				return s
			}
		}
	}
	return ""
}

// scalarString renders string and numeric JSON values; anything else (nested
// objects, arrays, null) is not usable as a named attribute.
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
