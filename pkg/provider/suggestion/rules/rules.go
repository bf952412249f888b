// Package rules provides a deterministic, always-available suggestion
// provider driven by a fixed priority table.
//
// The provider parses health, stamina, distance, and phase figures out of the
// serialized game-state text and walks a rule chain from most to least
// urgent. It is total: for any input, including one it cannot parse at all,
// it returns a non-empty suggestion and never an error. This makes it the
// terminal fallback behind model-backed providers.
package rules

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/suggestion"
)

// ProviderName is the identifier surfaced as model_used when the rule table
// serves a suggestion.
const ProviderName = "rule-based"

// Ensure Provider implements suggestion.Provider at compile time.
var _ suggestion.Provider = (*Provider)(nil)

// Provider is the deterministic rule-table coach. The zero value is ready to
// use and safe for concurrent use.
type Provider struct{}

// New returns a rule-based Provider.
func New() *Provider {
	return &Provider{}
}

// Name implements suggestion.Provider.
func (*Provider) Name() string {
	return ProviderName
}

// Suggest implements suggestion.Provider. The error is always nil.
func (*Provider) Suggest(_ context.Context, gameState string, _ int64) (suggestion.Suggestion, error) {
	gs := parse(gameState)

	// Critical health first.
	if gs.heroHP.known && gs.heroHP.v <= 20 {
		if gs.heroStamina.known && gs.heroStamina.v > 50 {
			return sug("Health dangerously low. Use your stamina for defensive rolls and blocks; avoid direct confrontation.", suggestion.ConfidenceCritical)
		}
		return sug("Low health and low stamina. Play extremely defensively and look for hit-and-run openings only.", suggestion.ConfidenceCritical)
	}
	if gs.knightHP.known && gs.knightHP.v <= 25 {
		if gs.heroStamina.known && gs.heroStamina.v > 40 {
			return sug("Enemy critically wounded. Commit heavy attacks for the finish.", suggestion.ConfidenceCritical)
		}
		return sug("Enemy weakened but your stamina is short. Finish with basic attacks without exhausting yourself.", suggestion.ConfidenceHigh)
	}

	// Stamina crisis.
	if gs.heroStamina.known && gs.heroStamina.v <= 20 {
		if gs.distance == "close" && gs.knightAttacking {
			return sug("Stamina crisis under attack at close range. Dodge out to create space, then recover.", suggestion.ConfidenceCritical)
		}
		return sug("Low stamina. Avoid heavy actions, keep your distance, and let stamina regenerate.", suggestion.ConfidenceHigh)
	}

	// Range-specific tactics.
	switch gs.distance {
	case "close":
		if gs.knightAttacking && gs.heroStamina.known && gs.heroStamina.v > 30 {
			if gs.knightStamina.known && gs.knightStamina.v < 40 {
				return sug("Enemy is attacking on low stamina. Block, then counter immediately with a melee combo.", suggestion.ConfidenceHigh)
			}
			return sug("Under attack at close range. Hold your block and counter after their combo ends.", suggestion.ConfidenceHigh)
		}
		if gs.heroStamina.known && gs.heroStamina.v > 50 {
			return sug("You have the stamina advantage up close. Initiate an aggressive melee combo before they recover.", suggestion.ConfidenceHigh)
		}
	case "medium":
		if gs.heroStamina.known && gs.heroStamina.v > 60 {
			return sug("Optimal engagement distance. Rush in with a movement plus attack combo before they can react.", suggestion.ConfidenceHigh)
		}
		return sug("Control the medium range. Close in when they recover, back off when they attack.", suggestion.ConfidenceMedium)
	case "far":
		if gs.phase == "critical" {
			return sug("Critical phase at long range. Sprint straight at the enemy; every second counts.", suggestion.ConfidenceHigh)
		}
		if gs.heroStamina.known && gs.heroStamina.v > 80 {
			return sug("Full stamina at distance. Sprint in and unleash a full surprise combo.", suggestion.ConfidenceHigh)
		}
		return sug("Too far for effective combat. Close the distance while conserving stamina.", suggestion.ConfidenceMedium)
	}

	// Relative stamina.
	if gs.heroStamina.known && gs.knightStamina.known {
		switch advantage := gs.heroStamina.v - gs.knightStamina.v; {
		case advantage > 30:
			return sug("Enemy is exhausted. Press an aggressive attack; they cannot block or dodge effectively.", suggestion.ConfidenceHigh)
		case advantage < -30:
			return sug("You are behind on stamina. Play defensive, let them waste energy, then counter.", suggestion.ConfidenceMedium)
		}
	}

	// Phase defaults.
	switch gs.phase {
	case "early_game":
		return sug("Early game: probe with single attacks and learn their defensive habits.", suggestion.ConfidenceMedium)
	case "mid_game":
		return sug("Even match so far. Win through stamina efficiency, not raw damage.", suggestion.ConfidenceMedium)
	}

	// Terminal default keeps the provider total.
	return sug("Stay balanced: manage stamina, keep medium distance, and punish overcommitted attacks.", suggestion.ConfidenceMedium)
}

func sug(text string, c suggestion.Confidence) (suggestion.Suggestion, error) {
	return suggestion.Suggestion{Text: text, Confidence: c}, nil
}

// optInt is an integer that may be absent from the parsed state.
type optInt struct {
	v     int
	known bool
}

// gameState holds the figures parsed out of the serialized state text.
type gameState struct {
	heroHP, knightHP           optInt
	heroStamina, knightStamina optInt
	distance                   string // "close", "medium", "far", or ""
	phase                      string // "early_game", "mid_game", "critical", or ""
	knightAttacking            bool
}

var (
	heroHPPattern     = regexp.MustCompile(`hero:?\s*(\d+)\s*%`)
	knightHPPattern   = regexp.MustCompile(`knight:?\s*(\d+)\s*%`)
	heroStamPattern   = regexp.MustCompile(`hero[^.]*?(\d+)\s*%?\s*stamina`)
	knightStamPattern = regexp.MustCompile(`knight[^.]*?(\d+)\s*%?\s*stamina`)
	distancePattern   = regexp.MustCompile(`distance:?\s*(close|medium|far)`)
	phasePattern      = regexp.MustCompile(`phase:?\s*(early_game|mid_game|critical)`)
)

// parse extracts the known figures from the lowercased state text. Anything
// it cannot find stays unknown; the rule chain handles partial states.
func parse(state string) gameState {
	s := strings.ToLower(state)
	return gameState{
		heroHP:        matchInt(heroHPPattern, s),
		knightHP:      matchInt(knightHPPattern, s),
		heroStamina:   matchInt(heroStamPattern, s),
		knightStamina: matchInt(knightStamPattern, s),
		distance:      matchGroup(distancePattern, s),
		phase:         matchGroup(phasePattern, s),
		knightAttacking: strings.Contains(s, "knight attacking") ||
			strings.Contains(s, "knight action: attack") ||
			strings.Contains(s, "purple attacking"),
	}
}

func matchInt(re *regexp.Regexp, s string) optInt {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return optInt{}
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return optInt{}
	}
	return optInt{v: v, known: true}
}

func matchGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}
