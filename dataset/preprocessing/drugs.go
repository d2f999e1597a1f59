package preprocessing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	c "github.com/hibor-causal/make-dataset/dataset/constants"
	ers "github.com/hibor-causal/make-dataset/dataset/errors"
)

type drugColumn struct {
	name  string
	count int
	given map[int]struct{}
}

// GetDrugsTimeseries builds one 1/0 column per drug over the timeline. Only
// maxNumDrugs columns are kept (0 keeps all): columns matching treatment first,
// then the most administered, ties broken by name. Kept columns are sorted by name.
func GetDrugsTimeseries(logger logrus.FieldLogger, tl *Timeline, drugs dataframe.DataFrame,
	maxNumDrugs int, treatment string) (dataframe.DataFrame, error) {
	if maxNumDrugs < 0 {
		return dataframe.DataFrame{}, &ers.InvalidArgumentError{Msg: fmt.Sprintf("max number of drugs %d is negative", maxNumDrugs)}
	}

	names := drugs.Col(c.DrugNameColumn).Records()
	byName := make(map[string]*drugColumn)
	for _, e := range tl.locate(logger, "drugs", drugs) {
		if isMissing(names[e.row]) {
			continue
		}
		name := columnName(c.DrugPrefix, names[e.row])
		if name == "" {
			continue
		}
		col, ok := byName[name]
		if !ok {
			col = &drugColumn{name: name, given: make(map[int]struct{})}
			byName[name] = col
		}
		col.count++
		col.given[tl.cell(e.subject, e.day)] = struct{}{}
	}

	ranked := make([]*drugColumn, 0, len(byName))
	for _, col := range byName {
		ranked = append(ranked, col)
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(treatment))
	isTreatment := func(col *drugColumn) bool {
		return needle != "" && isTreatmentColumn(fold, col.name, needle)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if ta, tb := isTreatment(a), isTreatment(b); ta != tb {
			return ta
		}
		if a.count != b.count {
			return a.count > b.count
		}
		return a.name < b.name
	})
	if maxNumDrugs > 0 && len(ranked) > maxNumDrugs {
		logger.Infof("Keeping %d of %d drug columns", maxNumDrugs, len(ranked))
		ranked = ranked[:maxNumDrugs]
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].name < ranked[j].name })

	columns := tl.keys()
	for _, col := range ranked {
		values := make([]string, tl.Rows())
		for i := range values {
			values[i] = "0"
			if _, ok := col.given[i]; ok {
				values[i] = "1"
			}
		}
		columns = append(columns, column{col.name, values})
	}

	df := newFrame(columns)
	return df, df.Err
}

// isTreatmentColumn reports whether the drug column name, without its prefix,
// contains the case folded needle.
func isTreatmentColumn(fold cases.Caser, name, needle string) bool {
	return strings.Contains(fold.String(strings.TrimPrefix(name, c.DrugPrefix)), needle)
}
