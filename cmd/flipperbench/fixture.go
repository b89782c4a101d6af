package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/larouxn/flipper/pkg/flipper"
)

// fixture is the YAML document shape accepted by the "seed" subcommand
// (SPEC_FULL.md Supplemental Feature 4) — a deterministic, file-based way to
// reproduce a rollout state without a running admin UI. Groups referenced by
// a feature's "groups" list must either already be registered in Go code, or
// be defined right here under the top-level "groups" key.
type fixture struct {
	Features []fixtureFeature `yaml:"features"`
	Groups   []fixtureGroup   `yaml:"groups,omitempty"`
}

type fixtureFeature struct {
	Name    string        `yaml:"name"`
	Boolean *bool         `yaml:"boolean,omitempty"`
	Actors  []string      `yaml:"actors,omitempty"`
	Groups  []string      `yaml:"groups,omitempty"`
	// PercentageOfActors and PercentageOfTime default to 0 (unset) when absent.
	PercentageOfActors int `yaml:"percentage_of_actors,omitempty"`
	PercentageOfTime   int `yaml:"percentage_of_time,omitempty"`
}

// fixtureGroup defines a group directly in the fixture rather than relying on
// one already registered elsewhere in Go code. Predicate is an expression in
// the same wire form flipper.ParseExpression accepts (see pkg/flipper/wire.go),
// e.g. `predicate: {Equal: [{Property: [plan]}, pro]}`.
type fixtureGroup struct {
	Name      string `yaml:"name"`
	Predicate any    `yaml:"predicate"`
}

// registerFixtureGroups parses and registers every group fixture defines,
// returning the count registered.
func registerFixtureGroups(f *fixture) (int, error) {
	for _, fg := range f.Groups {
		expr, err := flipper.ParseExpression(fg.Predicate)
		if err != nil {
			return 0, fmt.Errorf("group %q: parse predicate: %w", fg.Name, err)
		}
		flipper.Register(fg.Name, func(a flipper.Actor) bool {
			if expr == nil {
				return false
			}
			props, ok := a.(flipper.PropertyActor)
			if !ok {
				return expr.Evaluate(map[string]any{})
			}
			return expr.Evaluate(props.FlipperProperties())
		})
	}
	return len(f.Groups), nil
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// applyFixture registers every group fixture defines, then seeds every
// feature in f into app, returning the count of features written.
func applyFixture(ctx context.Context, app *flipper.Flipper, f *fixture) (int, error) {
	if _, err := registerFixtureGroups(f); err != nil {
		return 0, err
	}
	for _, ff := range f.Features {
		feature := app.Feature(ff.Name)
		if err := feature.Disable(ctx); err != nil {
			return 0, fmt.Errorf("feature %q: reset: %w", ff.Name, err)
		}
		if ff.Boolean != nil && *ff.Boolean {
			if err := feature.EnableBoolean(ctx); err != nil {
				return 0, fmt.Errorf("feature %q: enable boolean: %w", ff.Name, err)
			}
		}
		for _, actorID := range ff.Actors {
			if err := feature.EnableActor(ctx, flipper.NewActor(actorID)); err != nil {
				return 0, fmt.Errorf("feature %q: enable actor %q: %w", ff.Name, actorID, err)
			}
		}
		for _, group := range ff.Groups {
			if err := feature.EnableGroup(ctx, group); err != nil {
				return 0, fmt.Errorf("feature %q: enable group %q: %w", ff.Name, group, err)
			}
		}
		if ff.PercentageOfActors > 0 {
			if err := feature.EnablePercentageOfActors(ctx, ff.PercentageOfActors); err != nil {
				return 0, fmt.Errorf("feature %q: enable percentage_of_actors: %w", ff.Name, err)
			}
		}
		if ff.PercentageOfTime > 0 {
			if err := feature.EnablePercentageOfTime(ctx, ff.PercentageOfTime); err != nil {
				return 0, fmt.Errorf("feature %q: enable percentage_of_time: %w", ff.Name, err)
			}
		}
	}
	return len(f.Features), nil
}
