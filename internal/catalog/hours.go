package catalog

import (
	"fmt"
	"time"
)

// Hours is the daily opening window. Close may be earlier than Open, in which
// case the window runs past midnight.
type Hours struct {
	Open     int
	Close    int
	Location *time.Location
}

// Status is the restaurant's open state at a moment.
type Status struct {
	Open      bool      `json:"open"`
	LocalTime string    `json:"localTime"`
	NextEvent time.Time `json:"nextEvent"`
	Message   string    `json:"message"`
}

// IsOpen reports whether now falls inside the window.
func (h Hours) IsOpen(now time.Time) bool {
	hour := h.local(now).Hour()
	if h.Close < h.Open {
		return hour >= h.Open || hour < h.Close
	}
	return hour >= h.Open && hour < h.Close
}

// Status describes the window relative to now.
func (h Hours) Status(now time.Time) Status {
	local := h.local(now)
	st := Status{Open: h.IsOpen(now), LocalTime: local.Format("15:04")}
	if st.Open {
		st.NextEvent = nextAt(local, h.Close)
		st.Message = fmt.Sprintf("open until %s", st.NextEvent.Format("15:04"))
	} else {
		st.NextEvent = nextAt(local, h.Open)
		st.Message = fmt.Sprintf("closed, opens at %s", st.NextEvent.Format("15:04"))
	}
	return st
}

func (h Hours) local(t time.Time) time.Time {
	if h.Location == nil {
		return t
	}
	return t.In(h.Location)
}

// nextAt returns the first occurrence of hour:00 strictly after t.
func nextAt(t time.Time, hour int) time.Time {
	at := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
	if !at.After(t) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}
