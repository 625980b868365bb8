package rcon

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

var (
	firstNumber = regexp.MustCompile(`\d+`)
	playerLine  = regexp.MustCompile(`^\s*\d+\.\s+\S`)
)

// PlayersOnline asks the server how many players are connected. It tries the
// Minecraft style "list" first and falls back to the ARK style "listplayers".
func PlayersOnline(ctx context.Context, d Dialer) (int, error) {
	var online int
	err := WithSession(ctx, d, func(s Session) error {
		if resp, err := s.Send(ctx, "list"); err == nil {
			if n, ok := parseList(resp); ok {
				online = n
				return nil
			}
		}
		resp, err := s.Send(ctx, "listplayers")
		if err != nil {
			return err
		}
		online = parseListPlayers(resp)
		return nil
	})
	return online, err
}

// parseList reads "There are 3 of a max of 20 players online".
func parseList(resp string) (int, bool) {
	m := firstNumber.FindString(resp)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseListPlayers counts "0. Name, 7656..." lines.
func parseListPlayers(resp string) int {
	n := 0
	for _, line := range strings.Split(resp, "\n") {
		if playerLine.MatchString(line) {
			n++
		}
	}
	return n
}
