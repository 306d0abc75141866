package repository

import (
	"time"

	"kube-cost-observer/pkg/models"
)

// DaySegment is one day's slice of a requested range. Whole is set when
// the segment covers the entire day, letting a reader skip the time
// filter for middle days.
type DaySegment struct {
	Day   time.Time // UTC midnight
	From  time.Time // inclusive
	To    time.Time // exclusive
	Whole bool
}

// SplitRange decomposes [start, end) into per-day segments: the start
// day's tail, the end day's head, and every day strictly between them in
// full. Only the edge days need row-level filtering. An empty or inverted
// range yields no segments.
func SplitRange(start, end time.Time) []DaySegment {
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return nil
	}

	startDay := models.Day(start)
	endDay := models.Day(end)

	if startDay.Equal(endDay) {
		return []DaySegment{{Day: startDay, From: start, To: end, Whole: wholeDay(startDay, start, end)}}
	}

	segs := []DaySegment{{
		Day:   startDay,
		From:  start,
		To:    startDay.Add(24 * time.Hour),
		Whole: start.Equal(startDay),
	}}
	for day := startDay.Add(24 * time.Hour); day.Before(endDay); day = day.Add(24 * time.Hour) {
		segs = append(segs, DaySegment{Day: day, From: day, To: day.Add(24 * time.Hour), Whole: true})
	}
	// end falling exactly on midnight means the end day contributes nothing
	if end.After(endDay) {
		segs = append(segs, DaySegment{Day: endDay, From: endDay, To: end})
	}
	return segs
}

func wholeDay(day, start, end time.Time) bool {
	return start.Equal(day) && end.Equal(day.Add(24*time.Hour))
}

// filterRows keeps rows with seg.From <= ts < seg.To. Rows in a whole-day
// segment pass through untouched.
func filterRows(rows []models.MetricRow, seg DaySegment) []models.MetricRow {
	if seg.Whole {
		return rows
	}
	out := make([]models.MetricRow, 0, len(rows))
	for _, r := range rows {
		ts := r.Timestamp
		if !ts.Before(seg.From) && ts.Before(seg.To) {
			out = append(out, r)
		}
	}
	return out
}
