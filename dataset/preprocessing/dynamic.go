package preprocessing

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	c "github.com/hibor-causal/make-dataset/dataset/constants"
)

type observation struct {
	value string
	at    time.Time
	row   int
}

// GetDynamicVars pivots the clinical variables and labs onto the timeline, one
// clin_<variable> or lab_<test> column each. A cell of numeric observations
// holds their mean; otherwise the latest observation wins.
func GetDynamicVars(logger logrus.FieldLogger, tl *Timeline, clinical, labs dataframe.DataFrame) (dataframe.DataFrame, error) {
	columns := tl.keys()
	columns = append(columns, pivot(logger, tl, "clinical_vars", clinical, c.VariableColumn, c.ClinicalPrefix)...)
	columns = append(columns, pivot(logger, tl, "labs", labs, c.TestNameColumn, c.LabPrefix)...)

	df := newFrame(columns)
	return df, df.Err
}

func pivot(logger logrus.FieldLogger, tl *Timeline, table string, df dataframe.DataFrame, nameColumn, prefix string) []column {
	names := df.Col(nameColumn).Records()
	values := df.Col(c.ValueColumn).Records()

	cells := make(map[string]map[int][]observation)
	for _, e := range tl.locate(logger, table, df) {
		name := columnName(prefix, names[e.row])
		if name == "" || isMissing(values[e.row]) {
			continue
		}
		if _, ok := cells[name]; !ok {
			cells[name] = make(map[int][]observation)
		}
		i := tl.cell(e.subject, e.day)
		cells[name][i] = append(cells[name][i], observation{strings.TrimSpace(values[e.row]), e.at, e.row})
	}

	sorted := make([]string, 0, len(cells))
	for name := range cells {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	columns := make([]column, 0, len(sorted))
	for _, name := range sorted {
		col := column{name, make([]string, tl.Rows())}
		for i, obs := range cells[name] {
			col.values[i] = aggregate(obs)
		}
		columns = append(columns, col)
	}
	return columns
}

// aggregate reduces the observations of one cell.
func aggregate(obs []observation) string {
	nums := make([]float64, 0, len(obs))
	for _, o := range obs {
		f, err := strconv.ParseFloat(o.value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return latest(obs)
		}
		nums = append(nums, f)
	}
	return strconv.FormatFloat(floats.Sum(nums)/float64(len(nums)), 'f', -1, 64)
}

func latest(obs []observation) string {
	last := obs[0]
	for _, o := range obs[1:] {
		if o.at.After(last.at) || (o.at.Equal(last.at) && o.row > last.row) {
			last = o
		}
	}
	return last.value
}
