package rescache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GenerateKey canonicalizes params into a stable serialization, hashes it
// with SHA-256 and returns scopePrefix joined with the hex digest.
//
// Canonicalization: entries whose value is nil or an empty string are
// dropped; remaining keys are sorted lexicographically and joined as
// "key:value" pairs separated by "|". Two mappings that differ only by
// iteration order or by the presence of filtered-empty keys produce the
// same cache key. Values are coerced to their unambiguous textual literal
// form, so "1" (string) and 1 (int) hash to distinct keys.
func GenerateKey(scopePrefix string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if isEmptyValue(v) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(literal(params[k]))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return scopePrefix + hex.EncodeToString(sum[:])
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

// literal renders v into an unambiguous textual form: strings are quoted
// so that the string "1" never collides with the integer 1, booleans and
// numbers use their Go literal spelling, everything else falls back to
// fmt's default verb, quoted like a string.
func literal(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return strconv.Quote(fmt.Sprintf("%v", v))
	}
}
