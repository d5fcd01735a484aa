package reward

import "fmt"

// Reactions are the emoji a reader can put on a post.
var Reactions = []string{"🔥", "❤️", "😂", "👏"}

// ValidReaction reports whether emoji is one of Reactions.
func ValidReaction(emoji string) bool {
	for _, r := range Reactions {
		if r == emoji {
			return true
		}
	}
	return false
}

// ReactionState tracks one user's reaction on one content item.
//
// At most one emoji is active. The firstReactionRewarded latch is set by the
// first reaction and never cleared, so toggling or switching afterwards
// earns nothing. A fresh state is created per content item per session.
type ReactionState struct {
	active                string
	firstReactionRewarded bool
}

// Active returns the active emoji, or "" when none.
func (s *ReactionState) Active() string {
	return s.active
}

// Rewarded reports whether the first-reaction reward has been taken.
func (s *ReactionState) Rewarded() bool {
	return s.firstReactionRewarded
}

// Toggle applies a click on emoji. Clicking the active emoji clears it;
// any other emoji becomes active. The result is true exactly once per
// state: on the first reaction.
func (s *ReactionState) Toggle(emoji string) (rewardEligible bool, err error) {
	if !ValidReaction(emoji) {
		return false, fmt.Errorf("unknown reaction %q", emoji)
	}
	if s.active == emoji {
		s.active = ""
		return false, nil
	}
	s.active = emoji
	if s.firstReactionRewarded {
		return false, nil
	}
	s.firstReactionRewarded = true
	return true, nil
}
