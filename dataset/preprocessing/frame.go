package preprocessing

/******************************************************************************
This package turns the raw extracts into the three output tables.
Contents:
1. timeline.go    per-subject day grid shared by every time-indexed table
2. drugs.go       drug exposure time-series
3. split.go       treatment / covariate partition of the drug time-series
4. static.go      one row per subject
5. dynamic.go     clinical and lab measurements pivoted onto the grid
6. covariates.go  merging the drug covariates into the dynamic table
7. icd.go         diagnosis category indicators on the static table
******************************************************************************/

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	c "github.com/hibor-causal/make-dataset/dataset/constants"
)

var keyColumns = []string{c.SubjectColumn, c.DayColumn}

var nonWordRun = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// columnName derives an output column name from a raw value.
// It returns "" when nothing usable is left.
func columnName(prefix, raw string) string {
	name := nonWordRun.ReplaceAllString(strings.TrimSpace(raw), "_")
	if name == "" || name == "_" {
		return ""
	}
	return prefix + name
}

func isMissing(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "NA", "NaN":
		return true
	}
	return false
}

func parseTime(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if isMissing(v) {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// calendarDay truncates t to midnight UTC.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(calendarDay(to).Sub(calendarDay(from)).Hours() / 24)
}

// sortSubjects orders ids numerically when every id is an integer,
// lexicographically otherwise.
func sortSubjects(ids []string) {
	numeric := make(map[string]int64, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			sort.Strings(ids)
			return
		}
		numeric[id] = n
	}
	sort.SliceStable(ids, func(i, j int) bool {
		if numeric[ids[i]] != numeric[ids[j]] {
			return numeric[ids[i]] < numeric[ids[j]]
		}
		return ids[i] < ids[j]
	})
}

type column struct {
	name   string
	values []string
}

// newFrame builds a string dataframe. Columns must all have the same length.
func newFrame(columns []column) dataframe.DataFrame {
	s := make([]series.Series, 0, len(columns))
	for _, col := range columns {
		s = append(s, series.New(col.values, series.String, col.name))
	}
	return dataframe.New(s...)
}

func missingColumns(df dataframe.DataFrame, names ...string) []string {
	present := make(map[string]struct{}, df.Ncol())
	for _, name := range df.Names() {
		present[name] = struct{}{}
	}
	var missing []string
	for _, name := range names {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func nonKeyColumns(df dataframe.DataFrame) []string {
	var names []string
	for _, name := range df.Names() {
		if name == c.SubjectColumn || name == c.DayColumn {
			continue
		}
		names = append(names, name)
	}
	return names
}
