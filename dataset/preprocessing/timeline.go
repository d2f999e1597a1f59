package preprocessing

import (
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/sirupsen/logrus"

	c "github.com/hibor-causal/make-dataset/dataset/constants"
)

// Uncapped stays longer than this are reported as suspicious.
const longStayDays = 366

// Timeline is the day grid every time-indexed table is built on. A subject's
// day 0 is the calendar day of their earliest admission.
type Timeline struct {
	subjects     []string
	anchors      map[string]time.Time
	lengths      map[string]int
	offsets      map[string]int
	admissionRow map[string]int
	rows         int
}

// event is a located row of an event table.
type event struct {
	row     int
	subject string
	day     int
	at      time.Time
}

// NewTimeline derives the cohort and grid from the inpatient records. A subject
// without a usable discharge is followed until their last event in events.
// maxNumDays caps every grid, 0 leaves them uncapped.
func NewTimeline(logger logrus.FieldLogger, maxNumDays int, inpatients dataframe.DataFrame, events ...dataframe.DataFrame) *Timeline {
	tl := &Timeline{
		anchors:      make(map[string]time.Time),
		lengths:      make(map[string]int),
		offsets:      make(map[string]int),
		admissionRow: make(map[string]int),
	}

	ids := inpatients.Col(c.SubjectColumn).Records()
	admissions := inpatients.Col(c.AdmissionColumn).Records()
	discharges := inpatients.Col(c.DischargeColumn).Records()

	admittedAt := make(map[string]time.Time)
	ends := make(map[string]time.Time)
	skipped := 0
	for i, id := range ids {
		admitted, ok := parseTime(admissions[i])
		if !ok || isMissing(id) {
			skipped++
			continue
		}
		if first, seen := admittedAt[id]; !seen || admitted.Before(first) {
			admittedAt[id] = admitted
			tl.admissionRow[id] = i
		}
		if discharged, ok := parseTime(discharges[i]); ok {
			if end, seen := ends[id]; !seen || discharged.After(end) {
				ends[id] = discharged
			}
		}
	}
	if skipped > 0 {
		logger.WithField("table", "inpatient_records").
			Warnf("Skipped %d row(s) with missing subject or unparseable %s", skipped, c.AdmissionColumn)
	}

	for id, admitted := range admittedAt {
		tl.subjects = append(tl.subjects, id)
		tl.anchors[id] = calendarDay(admitted)
	}
	sortSubjects(tl.subjects)

	// Subjects without a discharge run until their last recorded event
	lastEvent := make(map[string]time.Time)
	for _, df := range events {
		subjects := df.Col(c.SubjectColumn).Records()
		datetimes := df.Col(c.DatetimeColumn).Records()
		for i, id := range subjects {
			anchor, inCohort := tl.anchors[id]
			if !inCohort {
				continue
			}
			if _, discharged := ends[id]; discharged {
				continue
			}
			at, ok := parseTime(datetimes[i])
			if !ok || at.Before(anchor) {
				continue
			}
			if last, seen := lastEvent[id]; !seen || at.After(last) {
				lastEvent[id] = at
			}
		}
	}

	for _, id := range tl.subjects {
		end, ok := ends[id]
		if !ok {
			end, ok = lastEvent[id]
		}
		length := 1
		if ok {
			if n := daysBetween(tl.anchors[id], end) + 1; n > length {
				length = n
			}
		}
		if maxNumDays > 0 && length > maxNumDays {
			length = maxNumDays
		} else if maxNumDays == 0 && length > longStayDays {
			logger.WithFields(logrus.Fields{"table": "inpatient_records", "subject": id}).
				Warnf("Stay spans %d day(s), check the admission and discharge dates or set MAX_NUM_DAYS", length)
		}
		tl.lengths[id] = length
		tl.offsets[id] = tl.rows
		tl.rows += length
	}

	logger.Debugf("Timeline covers %d subject(s) and %d day(s)", len(tl.subjects), tl.rows)
	return tl
}

// Subjects returns the cohort in output order.
func (tl *Timeline) Subjects() []string {
	return append([]string(nil), tl.subjects...)
}

// Len returns the number of grid days of subject, 0 outside the cohort.
func (tl *Timeline) Len(subject string) int {
	return tl.lengths[subject]
}

// Rows returns the number of (subject, day) cells.
func (tl *Timeline) Rows() int {
	return tl.rows
}

// Day maps a timestamp onto subject's grid.
func (tl *Timeline) Day(subject string, at time.Time) (int, bool) {
	anchor, ok := tl.anchors[subject]
	if !ok || at.Before(anchor) {
		return 0, false
	}
	day := daysBetween(anchor, at)
	if day >= tl.lengths[subject] {
		return 0, false
	}
	return day, true
}

// cell returns the row index of (subject, day) in a grid-shaped table.
func (tl *Timeline) cell(subject string, day int) int {
	return tl.offsets[subject] + day
}

// keys returns the patient_id and day columns of a grid-shaped table.
func (tl *Timeline) keys() []column {
	subjects := make([]string, 0, tl.rows)
	days := make([]string, 0, tl.rows)
	for _, id := range tl.subjects {
		for day := 0; day < tl.lengths[id]; day++ {
			subjects = append(subjects, id)
			days = append(days, strconv.Itoa(day))
		}
	}
	return []column{{c.SubjectColumn, subjects}, {c.DayColumn, days}}
}

// locate returns the rows of df that fall on the grid. Rows with a missing or
// unparseable datetime are counted in a single warning.
func (tl *Timeline) locate(logger logrus.FieldLogger, table string, df dataframe.DataFrame) []event {
	subjects := df.Col(c.SubjectColumn).Records()
	datetimes := df.Col(c.DatetimeColumn).Records()

	var located []event
	skipped, outside := 0, 0
	for i, id := range subjects {
		at, ok := parseTime(datetimes[i])
		if !ok {
			skipped++
			continue
		}
		day, ok := tl.Day(id, at)
		if !ok {
			outside++
			continue
		}
		located = append(located, event{row: i, subject: id, day: day, at: at})
	}

	entry := logger.WithField("table", table)
	if skipped > 0 {
		entry.Warnf("Skipped %d row(s) with missing or unparseable %s", skipped, c.DatetimeColumn)
	}
	if outside > 0 {
		entry.Debugf("Ignored %d row(s) outside the timeline", outside)
	}
	return located
}
