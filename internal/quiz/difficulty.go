package quiz

import "github.com/pavelanni/adaptquiz/internal/model"

// Thresholds configures how many consecutive answers move the tier.
type Thresholds struct {
	LevelUp   int `json:"level_up"`
	LevelDown int `json:"level_down"`
}

// DefaultThresholds returns three correct to level up and three incorrect
// to level down.
func DefaultThresholds() Thresholds {
	return Thresholds{LevelUp: 3, LevelDown: 3}
}

func (t Thresholds) normalized() Thresholds {
	d := DefaultThresholds()
	if t.LevelUp <= 0 {
		t.LevelUp = d.LevelUp
	}
	if t.LevelDown <= 0 {
		t.LevelDown = d.LevelDown
	}
	return t
}

// Transition is a one-step tier change.
type Transition struct {
	From model.Tier `json:"from"`
	To   model.Tier `json:"to"`
}

// LevelUp reports whether the transition raised the tier.
func (t Transition) LevelUp() bool { return t.To > t.From }

// Snapshot is the controller state at one history position.
type Snapshot struct {
	Tier            model.Tier
	CorrectStreak   int
	IncorrectStreak int
}

// Controller tracks answer streaks and maps them to tier transitions.
type Controller struct {
	thresholds Thresholds
	tier       model.Tier
	correct    int
	incorrect  int
}

// NewController creates a controller starting at the easy tier.
// Non-positive thresholds fall back to the defaults.
func NewController(t Thresholds) *Controller {
	return &Controller{thresholds: t.normalized(), tier: model.TierEasy}
}

// Tier returns the current tier.
func (c *Controller) Tier() model.Tier { return c.tier }

// CorrectStreak returns the current run of correct answers.
func (c *Controller) CorrectStreak() int { return c.correct }

// IncorrectStreak returns the current run of incorrect answers.
func (c *Controller) IncorrectStreak() int { return c.incorrect }

// Thresholds returns the effective thresholds.
func (c *Controller) Thresholds() Thresholds { return c.thresholds }

// RecordAnswer updates the streaks for one answer and reports a tier
// transition if one happened. The opposite streak is always zeroed.
func (c *Controller) RecordAnswer(correct bool) (Transition, bool) {
	if correct {
		c.correct++
		c.incorrect = 0
		if c.correct >= c.thresholds.LevelUp && c.tier < model.TierHard {
			return c.move(c.tier.Up()), true
		}
		return Transition{}, false
	}

	c.incorrect++
	c.correct = 0
	if c.incorrect >= c.thresholds.LevelDown && c.tier > model.TierEasy {
		return c.move(c.tier.Down()), true
	}
	return Transition{}, false
}

func (c *Controller) move(to model.Tier) Transition {
	t := Transition{From: c.tier, To: to}
	c.tier = to
	c.correct = 0
	c.incorrect = 0
	return t
}

// BreakStreak zeroes both streaks without touching the tier.
func (c *Controller) BreakStreak() {
	c.correct = 0
	c.incorrect = 0
}

// Reset returns the controller to its initial state.
func (c *Controller) Reset() {
	c.tier = model.TierEasy
	c.BreakStreak()
}

// Snapshot captures the current state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{Tier: c.tier, CorrectStreak: c.correct, IncorrectStreak: c.incorrect}
}

// Restore replaces the current state with s.
func (c *Controller) Restore(s Snapshot) {
	c.tier = s.Tier
	c.correct = s.CorrectStreak
	c.incorrect = s.IncorrectStreak
}
