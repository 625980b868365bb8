package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Metadata is the bundle attached to a payment when the preference was
// created. Values come back from the provider as decoded JSON.
type Metadata map[string]any

// String returns the value at key as a trimmed string. Numbers are
// formatted without exponent so numeric user ids survive the round trip.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Payment is the authoritative view of a payment as reported by the gateway.
type Payment struct {
	ID                string
	Status            PaymentStatus
	StatusDetail      string
	ExternalReference string
	Metadata          Metadata
}
