package toolkit

import "time"

type Countdown struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// CountdownTo splits the time left until exam into whole days and the
// remaining whole hours. Past exam dates give zero.
func CountdownTo(exam, now time.Time) Countdown {
	diff := exam.Sub(now)
	if diff <= 0 {
		return Countdown{}
	}
	const day = 24 * time.Hour
	return Countdown{
		Days:  int(diff / day),
		Hours: int((diff % day) / time.Hour),
	}
}
