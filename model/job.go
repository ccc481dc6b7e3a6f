package model

import "time"

// ScheduledJob fires a workflow on a cron or interval schedule.
// NextFireAt strictly increases after each fire and is always computed
// forward from the current time, never from a missed tick.
type ScheduledJob struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	Schedule    string    `json:"schedule"`
	Workflow    string    `json:"workflow"`
	NextFireAt  time.Time `json:"nextFireAt"`
	LastFiredAt time.Time `json:"lastFiredAt"`
	Paused      bool      `json:"paused"`
	Disabled    bool      `json:"disabled"`
}
