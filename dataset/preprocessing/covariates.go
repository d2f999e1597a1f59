package preprocessing

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"

	ers "github.com/hibor-causal/make-dataset/dataset/errors"
)

// AppendMoreCovariates adds the non-key columns of more to dynamic. Tables on
// the same grid are concatenated column-wise, anything else is left joined on
// patient_id and day.
func AppendMoreCovariates(dynamic, more dataframe.DataFrame) (dataframe.DataFrame, error) {
	if missing := missingColumns(dynamic, keyColumns...); len(missing) > 0 {
		return dataframe.DataFrame{}, &ers.MissingColumnsError{Table: "dynamic_vars", Columns: missing}
	}
	if missing := missingColumns(more, keyColumns...); len(missing) > 0 {
		return dataframe.DataFrame{}, &ers.MissingColumnsError{Table: "covariates", Columns: missing}
	}

	moreCols := nonKeyColumns(more)
	if len(moreCols) == 0 {
		return dynamic, nil
	}

	existing := make(map[string]struct{})
	for _, name := range nonKeyColumns(dynamic) {
		existing[name] = struct{}{}
	}
	var conflicts []string
	for _, name := range moreCols {
		if _, ok := existing[name]; ok {
			conflicts = append(conflicts, name)
		}
	}
	if len(conflicts) > 0 {
		return dataframe.DataFrame{}, &ers.ColumnConflictError{Columns: conflicts}
	}

	var merged dataframe.DataFrame
	if sameKeys(dynamic, more) {
		merged = dynamic.CBind(more.Select(moreCols))
	} else {
		merged = fillUnmatched(dynamic.LeftJoin(more, keyColumns...), moreCols)
		merged = merged.Select(append(dynamic.Names(), moreCols...))
	}
	if merged.Err != nil {
		return dataframe.DataFrame{}, errors.Wrap(merged.Err, "failed to merge covariates")
	}
	return merged, nil
}

func sameKeys(a, b dataframe.DataFrame) bool {
	if a.Nrow() != b.Nrow() {
		return false
	}
	for _, key := range keyColumns {
		ra, rb := a.Col(key).Records(), b.Col(key).Records()
		for i := range ra {
			if ra[i] != rb[i] {
				return false
			}
		}
	}
	return true
}

// fillUnmatched blanks the cells the join could not match, which gota leaves as NaN.
func fillUnmatched(df dataframe.DataFrame, names []string) dataframe.DataFrame {
	if df.Err != nil {
		return df
	}
	for _, name := range names {
		records := df.Col(name).Records()
		for i, v := range records {
			if v == "NaN" {
				records[i] = ""
			}
		}
		df = df.Mutate(series.New(records, series.String, name))
	}
	return df
}
