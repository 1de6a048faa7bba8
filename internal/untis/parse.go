package untis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/untiswatch/untiswatch/internal/timetable"
)

// WebUntis element type discriminators.
const (
	elemTeacher = 2
	elemSubject = 3
	elemRoom    = 4
)

// weeklyPayload mirrors the parts of the weekly/data response we consume.
type weeklyPayload struct {
	Data struct {
		Result struct {
			Data struct {
				Elements       []refElement                `json:"elements"`
				ElementPeriods map[string][]json.RawMessage `json:"elementPeriods"`
			} `json:"data"`
		} `json:"result"`
	} `json:"data"`
}

// refElement is one entry in the payload's elements lookup table.
// Teachers, subjects and rooms share the shape; only the fields we read.
type refElement struct {
	Type     int    `json:"type"`
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LongName string `json:"longName"`
}

// displayName prefers the long name when the provider supplies one.
func (e refElement) displayName() string {
	if e.LongName != "" {
		return e.LongName
	}
	return e.Name
}

// period is one scheduled slot in the person's elementPeriods array.
type period struct {
	ID        int64  `json:"id"`
	Date      int    `json:"date"`      // YYYYMMDD
	StartTime int    `json:"startTime"` // HMM or HHMM
	EndTime   int    `json:"endTime"`
	CellState string `json:"cellState"` // STANDARD | SUBSTITUTION | CANCEL
	SubstText string `json:"substText"`
	Elements  []periodElement `json:"elements"`
}

// periodElement links a period to an entry in the elements table. OrgID
// points at the originally scheduled element when State is not REGULAR.
type periodElement struct {
	Type  int    `json:"type"`
	ID    int64  `json:"id"`
	OrgID int64  `json:"orgId"`
	State string `json:"state"` // REGULAR | ABSENT | SUBSTITUTED
}

// parseWeekly normalizes a raw weekly/data payload into a Snapshot.
// Unknown element types are skipped with a warning (the provider adds new
// ones occasionally); a structurally broken payload is a *ParseError.
func parseWeekly(data []byte, personID int64, fetchedAt time.Time, policy timetable.ComparePolicy) (*timetable.Snapshot, error) {
	var payload weeklyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ParseError{Reason: "decode weekly payload", Err: err}
	}

	refs := make(map[int]map[int64]refElement)
	for _, e := range payload.Data.Result.Data.Elements {
		switch e.Type {
		case elemTeacher, elemSubject, elemRoom:
			if refs[e.Type] == nil {
				refs[e.Type] = make(map[int64]refElement)
			}
			refs[e.Type][e.ID] = e
		default:
			slog.Warn("untis: unknown element type in payload", "type", e.Type, "id", e.ID)
		}
	}

	raw, ok := payload.Data.Result.Data.ElementPeriods[strconv.FormatInt(personID, 10)]
	if !ok {
		return nil, &ParseError{Reason: fmt.Sprintf("no timetable for person %d in payload", personID)}
	}

	lessons := make([]timetable.Lesson, 0, len(raw))
	for _, r := range raw {
		var p period
		if err := json.Unmarshal(r, &p); err != nil {
			return nil, &ParseError{Reason: "decode period", Err: err}
		}
		l, err := toLesson(p, refs)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}

	return timetable.NewSnapshot(fetchedAt, lessons, policy)
}

// toLesson converts one period into the provider-neutral lesson shape.
func toLesson(p period, refs map[int]map[int64]refElement) (timetable.Lesson, error) {
	var l timetable.Lesson

	if p.ID <= 0 {
		return l, &ParseError{Reason: "period without id"}
	}
	l.ID = p.ID

	switch p.CellState {
	case "STANDARD":
		l.State = timetable.StateHeld
	case "CANCEL":
		l.State = timetable.StateCancelled
	case "SUBSTITUTION":
		l.State = timetable.StateSubstituted
	default:
		return l, &ParseError{Reason: fmt.Sprintf("period %d: unknown cellState %q", p.ID, p.CellState)}
	}

	start, err := untisTime(p.Date, p.StartTime)
	if err != nil {
		return l, &ParseError{Reason: fmt.Sprintf("period %d: start", p.ID), Err: err}
	}
	end, err := untisTime(p.Date, p.EndTime)
	if err != nil {
		return l, &ParseError{Reason: fmt.Sprintf("period %d: end", p.ID), Err: err}
	}
	l.Start, l.End = start, end
	l.Note = p.SubstText

	for _, pe := range p.Elements {
		name := func(id int64) string { return refs[pe.Type][id].displayName() }
		current, prev := resolve(pe, name)
		switch pe.Type {
		case elemSubject:
			l.Subject = current
		case elemTeacher:
			l.Teacher, l.PrevTeacher = current, prev
		case elemRoom:
			l.Room, l.PrevRoom = current, prev
		}
	}

	if l.Subject == "" {
		return l, &ParseError{Reason: fmt.Sprintf("period %d: no subject element", p.ID)}
	}
	return l, nil
}

// resolve maps a period element reference to its current and original
// display names according to its substitution state.
func resolve(pe periodElement, name func(int64) string) (current, prev string) {
	switch pe.State {
	case "SUBSTITUTED":
		return name(pe.ID), name(pe.OrgID)
	case "ABSENT":
		orig := pe.OrgID
		if orig == 0 {
			orig = pe.ID
		}
		return "", name(orig)
	default: // REGULAR or unmarked
		return name(pe.ID), ""
	}
}

// untisTime combines the provider's integer date (YYYYMMDD) and time (HMM or
// HHMM) encodings into a local wall-clock time.
func untisTime(date, hm int) (time.Time, error) {
	if date < 10000101 || date > 99991231 {
		return time.Time{}, fmt.Errorf("date %d out of range", date)
	}
	hours, minutes := hm/100, hm%100
	if hm < 0 || hours > 23 || minutes > 59 {
		return time.Time{}, fmt.Errorf("time %d out of range", hm)
	}
	year, month, day := date/10000, date/100%100, date%100
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date %d out of range", date)
	}
	return time.Date(year, time.Month(month), day, hours, minutes, 0, 0, time.Local), nil
}
