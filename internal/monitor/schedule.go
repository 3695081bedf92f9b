package monitor

import "time"

// schedule tracks the due times of the two periodic refreshes sharing the
// loop. A zero due time means the refresh has never run and is due now.
type schedule struct {
	devicePeriod time.Duration
	statusPeriod time.Duration

	deviceDue time.Time
	statusDue time.Time
}

func newSchedule(devicePeriod, statusPeriod time.Duration) *schedule {
	return &schedule{devicePeriod: devicePeriod, statusPeriod: statusPeriod}
}

func (s *schedule) deviceRefreshDue(now time.Time) bool {
	return s.deviceDue.IsZero() || !now.Before(s.deviceDue)
}

func (s *schedule) statusRefreshDue(now time.Time) bool {
	return s.statusDue.IsZero() || !now.Before(s.statusDue)
}

func (s *schedule) deviceRefreshed(now time.Time) {
	s.deviceDue = now.Add(s.devicePeriod)
}

func (s *schedule) statusRefreshed(now time.Time) {
	s.statusDue = now.Add(s.statusPeriod)
}

// sleep returns how long to wait from now until the nearer due time.
func (s *schedule) sleep(now time.Time) time.Duration {
	if s.deviceDue.IsZero() || s.statusDue.IsZero() {
		return 0
	}

	next := s.deviceDue
	if s.statusDue.Before(next) {
		next = s.statusDue
	}

	if d := next.Sub(now); d > 0 {
		return d
	}
	return 0
}
