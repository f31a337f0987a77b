package mts

import "fmt"

// DefaultFairnessCap is the number of consecutive equal-priority crossings
// one direction may take while the other direction is waiting
const DefaultFairnessCap = 2

// SchedulerState is the shared scheduling bookkeeping for one run
type SchedulerState struct {
	// LastDirection is the direction of the most recent grant, NoDirection before the first one.
	LastDirection Direction
	// Streak counts consecutive grants to LastDirection.
	Streak int
	// TrainsCrossing is 0 or 1.
	TrainsCrossing int
	// Crossed counts trains that finished crossing.
	Crossed int
}

// Rule identifies which branch of the admission predicate granted a train
type Rule int

const (
	// RuleNone means nothing was admitted
	RuleNone Rule = iota
	// RuleUncontested admits the only non-empty queue's head
	RuleUncontested
	// RulePriority admits a High head over a Normal opposite head
	RulePriority
	// RuleStreak lets the last granted direction continue below the fairness cap
	RuleStreak
	// RuleYield hands the track to the opposite direction once the cap is reached
	RuleYield
	// RuleFirstArrival breaks an equal-priority tie before any grant by queue rank
	RuleFirstArrival
)

// String returns the rule name
func (r Rule) String() string {
	switch r {
	case RuleUncontested:
		return "uncontested"
	case RulePriority:
		return "priority"
	case RuleStreak:
		return "streak"
	case RuleYield:
		return "yield"
	case RuleFirstArrival:
		return "first-arrival"
	default:
		return "none"
	}
}

// Decision is the outcome of one evaluation of the admission predicate
type Decision struct {
	// Train is the admitted train, nil when nothing can be admitted.
	Train *Train
	// Opponent is the opposite queue head that lost, nil when uncontested.
	Opponent *Train
	Rule     Rule
	// Streak is the streak length including this grant.
	Streak int
}

// Admitted reports whether the decision grants a train
func (d Decision) Admitted() bool {
	return d.Train != nil
}

func (d Decision) String() string {
	if d.Train == nil {
		return "no admission"
	}
	if d.Opponent == nil {
		return fmt.Sprintf("admit train %d (%s)", d.Train.ID, d.Rule)
	}
	return fmt.Sprintf("admit train %d over train %d (%s, streak %d)", d.Train.ID, d.Opponent.ID, d.Rule, d.Streak)
}

// Policy is the admission predicate. It holds no state; every input is
// passed to Admit so the rules can be tested without any concurrency.
type Policy struct {
	FairnessCap int
}

// NewPolicy creates a policy with the given fairness cap
func NewPolicy(fairnessCap int) Policy {
	return Policy{FairnessCap: fairnessCap}
}

// Admit decides which of the two queue heads gets the track next. Either
// head may be nil. Nothing is admitted while a train is crossing.
func (p Policy) Admit(eastHead, westHead *Train, s SchedulerState) Decision {
	if s.TrainsCrossing != 0 {
		return Decision{}
	}

	switch {
	case eastHead == nil && westHead == nil:
		return Decision{}
	case westHead == nil:
		return p.decide(eastHead, nil, RuleUncontested, s)
	case eastHead == nil:
		return p.decide(westHead, nil, RuleUncontested, s)
	}

	if eastHead.Priority != westHead.Priority {
		if eastHead.Priority > westHead.Priority {
			return p.decide(eastHead, westHead, RulePriority, s)
		}
		return p.decide(westHead, eastHead, RulePriority, s)
	}

	if !s.LastDirection.Valid() {
		if eastHead.rank < westHead.rank {
			return p.decide(eastHead, westHead, RuleFirstArrival, s)
		}
		return p.decide(westHead, eastHead, RuleFirstArrival, s)
	}

	streaking, other := eastHead, westHead
	if s.LastDirection == West {
		streaking, other = westHead, eastHead
	}
	if s.Streak < p.FairnessCap {
		return p.decide(streaking, other, RuleStreak, s)
	}
	return p.decide(other, streaking, RuleYield, s)
}

func (p Policy) decide(t, opponent *Train, rule Rule, s SchedulerState) Decision {
	return Decision{
		Train:    t,
		Opponent: opponent,
		Rule:     rule,
		Streak:   s.streakAfter(t.Direction),
	}
}

// streakAfter returns the streak length once a train travelling d is granted
func (s SchedulerState) streakAfter(d Direction) int {
	if d == s.LastDirection {
		return s.Streak + 1
	}
	return 1
}
