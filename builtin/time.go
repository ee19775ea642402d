package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/dispatch"
)

type currentTimeArgs struct {
	Timezone string `json:"timezone"`
}

type currentTimeResult struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Weekday  string `json:"weekday"`
}

// CurrentTime returns the published current_time tool.
func CurrentTime(now func() time.Time) relay.ToolDefinition {
	return relay.ToolDefinition{
		Tool: relay.Tool{
			Name:        "current_time",
			Description: "Get the current date and time, optionally in an IANA time zone.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"timezone": {
						"type": "string",
						"description": "IANA time zone name such as Europe/Warsaw. Defaults to UTC."
					}
				}
			}`),
		},
		Handler: dispatch.Typed(func(_ context.Context, a currentTimeArgs) (currentTimeResult, error) {
			name := a.Timezone
			if name == "" {
				name = "UTC"
			}
			loc, err := time.LoadLocation(name)
			if err != nil {
				return currentTimeResult{}, fmt.Errorf("unknown timezone %q", a.Timezone)
			}
			t := now().In(loc)
			return currentTimeResult{
				Time:     t.Format(time.RFC3339),
				Timezone: loc.String(),
				Weekday:  t.Weekday().String(),
			}, nil
		}),
		Published: true,
	}
}
