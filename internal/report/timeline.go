package report

import "time"

// Span is the time window a step occupied.
type Span struct {
	Start time.Time
	Stop  time.Time
}

// Schedule places steps on a timeline. Steps carrying a clock offset start at
// base plus that offset, so nested debug log commands overlap their parent.
// Steps carrying a timestamp start at it. The others start where the previous
// step stopped, beginning at base. Each step lasts its parsed duration, or
// zero when none was logged. A zero base is treated as the Unix epoch.
func Schedule(base time.Time, steps []StepEvent) []Span {
	if base.IsZero() {
		base = time.Unix(0, 0).UTC()
	}
	spans := make([]Span, 0, len(steps))
	cursor := base
	for _, step := range steps {
		start := cursor
		switch {
		case step.HasOffset:
			start = base.Add(step.Offset)
		case !step.Timestamp.IsZero():
			start = step.Timestamp
		}
		stop := start.Add(step.Duration)
		spans = append(spans, Span{Start: start, Stop: stop})
		if !step.HasOffset || stop.After(cursor) {
			cursor = stop
		}
	}
	return spans
}

// Bounds returns the earliest start and latest stop across spans, or base for
// both when there are none.
func Bounds(base time.Time, spans []Span) (time.Time, time.Time) {
	if base.IsZero() {
		base = time.Unix(0, 0).UTC()
	}
	if len(spans) == 0 {
		return base, base
	}
	start, stop := spans[0].Start, spans[0].Stop
	for _, s := range spans[1:] {
		if s.Start.Before(start) {
			start = s.Start
		}
		if s.Stop.After(stop) {
			stop = s.Stop
		}
	}
	return start, stop
}
