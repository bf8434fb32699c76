// Package timetool provides the clock tools used by the time-zone demo agent:
// a per-location lookup, a London/India comparison and an IANA zone lookup.
package timetool

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // embedded zone database

	"github.com/hupe1980/reactmesh/tool"
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

const (
	londonZone = "Europe/London"
	indiaZone  = "Asia/Kolkata"
)

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// NewTimeForLocation returns the get_time_for_timezone tool. Any location
// other than London resolves to India time.
func NewTimeForLocation(clock Clock) tool.Tool {
	return tool.NewFunctionTool(
		"get_time_for_timezone",
		"Gets the current time for a specific location. Input should be exactly 'London' or 'India'",
		func(_ context.Context, input string) (string, error) {
			location := cleanInput(input)
			zone := indiaZone
			if strings.EqualFold(location, "london") {
				zone = londonZone
			}
			hhmm, err := formatIn(clock.now(), zone, "15:04")
			if err != nil {
				return fmt.Sprintf("Error getting time: %v", err), nil
			}
			return fmt.Sprintf("Current time in %s: %s", location, hhmm), nil
		},
	)
}

// NewCompareTimes returns the compare_times tool. Its input is ignored.
func NewCompareTimes(clock Clock) tool.Tool {
	return tool.NewFunctionTool(
		"compare_times",
		"Shows current time in both London and India",
		func(context.Context, string) (string, error) {
			now := clock.now()
			london, err := formatIn(now, londonZone, "15:04")
			if err != nil {
				return fmt.Sprintf("Error comparing times: %v", err), nil
			}
			india, err := formatIn(now, indiaZone, "15:04")
			if err != nil {
				return fmt.Sprintf("Error comparing times: %v", err), nil
			}
			return fmt.Sprintf("Current time - London: %s, India: %s", london, india), nil
		},
	)
}

// NewSystemTime returns the get_system_time tool taking an IANA zone name.
func NewSystemTime(clock Clock) tool.Tool {
	return tool.NewFunctionTool(
		"get_system_time",
		"Returns the current time in the specified timezone. For London use: Europe/London (without quotes)",
		func(_ context.Context, input string) (string, error) {
			hms, err := formatIn(clock.now(), cleanInput(input), "15:04:05")
			if err != nil {
				return fmt.Sprintf("Error getting time: %v", err), nil
			}
			return hms, nil
		},
	)
}

// All returns every time tool in prompt order.
func All(clock Clock) []tool.Tool {
	return []tool.Tool{NewTimeForLocation(clock), NewCompareTimes(clock), NewSystemTime(clock)}
}

// cleanInput strips whitespace and the quotes models like to add around values.
func cleanInput(s string) string {
	return strings.Trim(strings.TrimSpace(s), `'"`)
}

func formatIn(t time.Time, zone, layout string) (string, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(layout), nil
}
