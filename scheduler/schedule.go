package scheduler

import (
	"time"

	"github.com/automaton-io/automaton/model"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextAfter computes the first fire time of a schedule spec strictly
// after t. Supported specs: five-field cron expressions, descriptors
// such as "@every 60s" or "@hourly", and bare durations such as "60s".
func NextAfter(spec string, t time.Time) (time.Time, error) {
	sched, err := parseSpec(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t), nil
}

// ValidateSpec reports whether a schedule spec can ever fire.
func ValidateSpec(spec string) error {
	_, err := parseSpec(spec)
	return err
}

func parseSpec(spec string) (cron.Schedule, error) {
	if spec == "" {
		return nil, model.NewConfigError("empty schedule spec")
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, model.NewConfigError("schedule interval %q must be positive", spec)
		}
		return cron.Every(d), nil
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, model.NewConfigError("invalid schedule spec %q: %v", spec, err)
	}
	return sched, nil
}
