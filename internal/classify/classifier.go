// Package classify assigns a template role and a confidence score to each
// feature snapshot using an ordered, weighted rule table.
package classify

import (
	"fmt"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/features"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Result is the outcome of classifying one snapshot.
type Result struct {
	Role   constants.Role
	Score  int
	Totals map[constants.Role]int
	Fired  []string
}

// Classifier scores snapshots with a fixed rule table.
type Classifier struct {
	rules []Rule
}

// New validates rules and builds a Classifier.
func New(rules []Rule) (*Classifier, error) {
	if len(rules) == 0 {
		return nil, common.InvalidInput("classifier needs at least one rule")
	}
	for i, r := range rules {
		if _, ok := signals[r.Signal]; !ok {
			return nil, common.InvalidInput("rule %d (%s): unknown signal %q", i, r.Name, r.Signal)
		}
		if !r.Role.Valid() {
			return nil, common.InvalidInput("rule %d (%s): unknown role %q", i, r.Name, r.Role)
		}
		if r.Weight < 0 || r.Weight > MaxScore {
			return nil, common.InvalidInput("rule %d (%s): weight %d out of [0,%d]", i, r.Name, r.Weight, MaxScore)
		}
	}
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Classifier{rules: cp}, nil
}

// Default returns a Classifier over DefaultRules.
func Default() *Classifier {
	c, err := New(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("classify: default rules invalid: %v", err))
	}
	return c
}

func (c *Classifier) Rules() []Rule {
	cp := make([]Rule, len(c.rules))
	copy(cp, c.rules)
	return cp
}

// Classify sums every rule's contribution per role. The largest total wins;
// equal totals go to the role with the higher priority (field > section_title
// > header), so a snapshot nothing fires on is a field with score 0.
func (c *Classifier) Classify(f features.Features) Result {
	totals := map[constants.Role]int{
		constants.RoleField:        0,
		constants.RoleSectionTitle: 0,
		constants.RoleHeader:       0,
	}
	var fired []string
	for _, r := range c.rules {
		pts := r.Contribution(f)
		if pts == 0 {
			continue
		}
		totals[r.Role] += pts
		fired = append(fired, r.Name)
	}

	best := constants.RoleField
	for _, role := range constants.Roles {
		if totals[role] > totals[best] {
			best = role
		} else if totals[role] == totals[best] && constants.RolePriority(role) > constants.RolePriority(best) {
			best = role
		}
	}

	return Result{
		Role:   best,
		Score:  clip(totals[best]),
		Totals: totals,
		Fired:  fired,
	}
}

func clip(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
