package preprocessing

import (
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	c "github.com/hibor-causal/make-dataset/dataset/constants"
	ers "github.com/hibor-causal/make-dataset/dataset/errors"
)

var requiredInpatientColumns = map[string]struct{}{
	c.SubjectColumn:   {},
	c.AdmissionColumn: {},
	c.DischargeColumn: {},
}

// GetStaticVars builds one row per subject of the timeline: the extra inpatient
// columns of the earliest admission, the length of stay and the first recorded
// value of each requested clinical and lab variable.
func GetStaticVars(logger logrus.FieldLogger, tl *Timeline, inpatients, clinical, labs dataframe.DataFrame,
	staticClinical, staticLabs []string) (dataframe.DataFrame, error) {
	subjects := tl.Subjects()
	columns := []column{{c.SubjectColumn, subjects}}

	extras := make(map[string]struct{})
	for _, name := range inpatients.Names() {
		if _, ok := requiredInpatientColumns[name]; ok {
			continue
		}
		extras[name] = struct{}{}
		records := inpatients.Col(name).Records()
		values := make([]string, len(subjects))
		for i, id := range subjects {
			values[i] = records[tl.admissionRow[id]]
		}
		columns = append(columns, column{name, values})
	}

	stays := make([]string, len(subjects))
	for i, id := range subjects {
		stays[i] = strconv.Itoa(tl.Len(id))
	}
	derived := []column{{c.LengthOfStayColumn, stays}}
	derived = append(derived, baselines(logger, tl, "clinical_vars", clinical, c.VariableColumn, c.ClinicalPrefix, staticClinical)...)
	derived = append(derived, baselines(logger, tl, "labs", labs, c.TestNameColumn, c.LabPrefix, staticLabs)...)

	// Inpatient columns must not shadow a derived one
	var conflicts []string
	for _, col := range derived {
		if _, ok := extras[col.name]; ok {
			conflicts = append(conflicts, col.name)
		}
	}
	if len(conflicts) > 0 {
		return dataframe.DataFrame{}, &ers.ColumnConflictError{Columns: conflicts}
	}

	df := newFrame(append(columns, derived...))
	return df, df.Err
}

// baselines returns a <prefix><name>_baseline column per requested name, holding
// the earliest non-missing value each subject has on the grid.
func baselines(logger logrus.FieldLogger, tl *Timeline, table string, df dataframe.DataFrame,
	nameColumn, prefix string, requested []string) []column {
	fold := cases.Fold()
	wanted := make(map[string]int)
	var columns []column
	for _, raw := range requested {
		name := columnName(prefix, raw)
		key := fold.String(name)
		if _, dup := wanted[key]; name == "" || dup {
			continue
		}
		wanted[key] = len(columns)
		columns = append(columns, column{name + c.BaselineSuffix, nil})
	}
	if len(columns) == 0 {
		return nil
	}

	subjects := tl.Subjects()
	index := make(map[string]int, len(subjects))
	for i, id := range subjects {
		index[id] = i
	}

	type first struct {
		value string
		event event
	}
	found := make([]map[string]first, len(columns))
	for i := range found {
		found[i] = make(map[string]first)
	}

	names := df.Col(nameColumn).Records()
	values := df.Col(c.ValueColumn).Records()
	for _, e := range tl.locate(logger, table, df) {
		col, ok := wanted[fold.String(columnName(prefix, names[e.row]))]
		if !ok || isMissing(values[e.row]) {
			continue
		}
		if prev, seen := found[col][e.subject]; !seen || e.at.Before(prev.event.at) {
			found[col][e.subject] = first{strings.TrimSpace(values[e.row]), e}
		}
	}

	for i := range columns {
		columns[i].values = make([]string, len(subjects))
		for id, f := range found[i] {
			columns[i].values[index[id]] = f.value
		}
	}
	return columns
}
