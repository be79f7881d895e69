package types

import (
	"fmt"
	"time"
)

type Interval string

const (
	OneMinute      Interval = "1m"
	FiveMinutes    Interval = "5m"
	FifteenMinutes Interval = "15m"
	Hour           Interval = "1h"
	FourHours      Interval = "4h"
	Day            Interval = "1d"
	Week           Interval = "1w"
)

var IntervalToTime = map[Interval]time.Duration{
	OneMinute:      time.Minute,
	FiveMinutes:    time.Minute * 5,
	FifteenMinutes: time.Minute * 15,
	Hour:           time.Hour,
	FourHours:      time.Hour * 4,
	Day:            time.Hour * 24,
	Week:           time.Hour * 24 * 7,
}

func (i Interval) Duration() time.Duration {
	return IntervalToTime[i]
}

func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := IntervalToTime[iv]; !ok {
		return "", fmt.Errorf("unknown interval %q", s)
	}
	return iv, nil
}
