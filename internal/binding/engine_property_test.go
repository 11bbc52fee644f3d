//go:build property

package binding

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestApplyProperties checks that binding is idempotent on its own output.
func TestApplyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	ctx := context.Background()

	properties.Property("second pass changes nothing", prop.ForAll(
		func(names []string, title string) bool {
			team := make([]map[string]string, len(names))
			for i, n := range names {
				team[i] = map[string]string{"name": n}
			}
			inline, err := json.Marshal(team)
			if err != nil {
				return false
			}
			src := fmt.Sprintf(`<html><head>
<meta name="cms-service" data-alias="team" data-inline='%s'>
<meta name="cms-service" data-alias="site" data-inline='{"title":%q}'>
</head><body>
<div data-cms-service="site"><h1 data-cms-bind-text="title">x</h1></div>
<ul><li data-cms-service="team" data-cms-template><span data-cms-bind-text="name">?</span></li></ul>
</body></html>`, inline, title)

			e := NewEngine(NewResolver(), nil)
			once, _, err := e.ApplySource(ctx, src)
			if err != nil {
				return false
			}
			twice, changed, err := e.ApplySource(ctx, once)
			return err == nil && !changed && twice == once
		},
		gen.SliceOf(gen.Identifier()),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
