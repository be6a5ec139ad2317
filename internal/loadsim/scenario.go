// Package loadsim generates realistic search traffic for load runs against
// a live API.
package loadsim

import (
	"math/rand"
	"time"
)

type Query struct {
	Text  string
	Types []string
	Limit int
}

type Scenario struct {
	Name    string
	Queries []string
	Types   [][]string
}

func CoachingSeasonScenario() Scenario {
	return Scenario{
		Name: "CoachingSeason",
		Queries: []string{
			"how has the client handled conflict with their manager",
			"progress on public speaking goals since the spring",
			"themes from the last three sessions",
			"leadership assessment strengths and blind spots",
			"what commitments were made about delegation",
			"client confidence before the promotion conversation",
			"notes about burnout or workload concerns",
			"which coaching model was applied for goal setting",
		},
		Types: [][]string{
			nil,
			{"transcript"},
			{"assessment"},
			{"transcript", "note"},
			{"goal", "note"},
		},
	}
}

type Generator struct {
	scenario Scenario
	rnd      *rand.Rand
}

func NewGenerator(seed int64) Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return Generator{scenario: CoachingSeasonScenario(), rnd: rand.New(rand.NewSource(seed))}
}

func (g Generator) NextQuery() Query {
	q := g.scenario.Queries[g.rnd.Intn(len(g.scenario.Queries))]
	types := g.scenario.Types[g.rnd.Intn(len(g.scenario.Types))]
	return Query{
		Text:  q,
		Types: types,
		Limit: 1 + g.rnd.Intn(20),
	}
}
