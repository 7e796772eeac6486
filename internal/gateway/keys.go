package gateway

import "strings"

// Document key layout. Keeping the scheme in one place means the redis and
// memory stores, the reconciler and the directory all agree on it.

// ProfileKey is the per-user durable profile document.
func ProfileKey(userID string) string { return "profile:" + userID }

// LeagueKey is the league record document.
func LeagueKey(leagueID string) string { return "league:" + leagueID }

// LeagueCodeKey indexes a private league by its join code. The code is
// stored uppercase so lookups are case-insensitive.
func LeagueCodeKey(code string) string {
	return "league-code:" + strings.ToUpper(code)
}

// MembershipKey is the (user, league) relation document.
func MembershipKey(leagueID, userID string) string {
	return "member:" + leagueID + ":" + userID
}

// UserLeaguesKey lists the league IDs a user belongs to, for the
// league-scoped point mirror.
func UserLeaguesKey(userID string) string { return "user-leagues:" + userID }

// LeagueIndexKey lists all league IDs in insertion order.
const LeagueIndexKey = "leagues:all"

// ScoreEventsKey is the document the reconciler writes after each commit;
// the rank projector subscribes to it.
const ScoreEventsKey = "events:scores"
