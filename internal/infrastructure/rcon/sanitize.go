package rcon

import (
	"strings"

	"guardians-shop/internal/domain"
)

// SanitizePlayer strips every character outside [A-Za-z0-9_-]. Lossy: the
// stripped value is what reaches the game server.
func SanitizePlayer(player string) string {
	var b strings.Builder
	b.Grow(len(player))
	for _, r := range player {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveCommand substitutes the sanitized player into a product template.
func ResolveCommand(template, player string) string {
	return strings.ReplaceAll(template, domain.PlayerPlaceholder, SanitizePlayer(player))
}
