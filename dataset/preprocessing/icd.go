package preprocessing

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"

	c "github.com/hibor-causal/make-dataset/dataset/constants"
	ers "github.com/hibor-causal/make-dataset/dataset/errors"
)

// AddICDsToStaticVars appends an icd_<category> indicator per diagnosis
// category found in the emergency and inpatient codes. A category is the code
// normalized and cut to codeLength characters (0 keeps the full code). The
// maxNumICDs categories shared by the most subjects are kept (0 keeps all).
func AddICDsToStaticVars(static, emergency, inpatient dataframe.DataFrame, codeLength, maxNumICDs int) (dataframe.DataFrame, error) {
	if codeLength < 0 || maxNumICDs < 0 {
		return dataframe.DataFrame{}, &ers.InvalidArgumentError{
			Msg: fmt.Sprintf("icd code length %d and max number of icds %d must not be negative", codeLength, maxNumICDs),
		}
	}
	if missing := missingColumns(static, c.SubjectColumn); len(missing) > 0 {
		return dataframe.DataFrame{}, &ers.MissingColumnsError{Table: "static_vars", Columns: missing}
	}

	subjects := static.Col(c.SubjectColumn).Records()
	index := make(map[string]int, len(subjects))
	for i, id := range subjects {
		index[id] = i
	}

	diagnosed := make(map[string]map[int]struct{})
	for _, codes := range []dataframe.DataFrame{emergency, inpatient} {
		ids := codes.Col(c.SubjectColumn).Records()
		values := codes.Col(c.ICDCodeColumn).Records()
		for i, id := range ids {
			row, ok := index[id]
			if !ok || isMissing(values[i]) {
				continue
			}
			name := columnName(c.ICDPrefix, icdCategory(values[i], codeLength))
			if name == "" {
				continue
			}
			if _, ok := diagnosed[name]; !ok {
				diagnosed[name] = make(map[int]struct{})
			}
			diagnosed[name][row] = struct{}{}
		}
	}

	ranked := make([]string, 0, len(diagnosed))
	for name := range diagnosed {
		ranked = append(ranked, name)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if len(diagnosed[a]) != len(diagnosed[b]) {
			return len(diagnosed[a]) > len(diagnosed[b])
		}
		return a < b
	})
	if maxNumICDs > 0 && len(ranked) > maxNumICDs {
		ranked = ranked[:maxNumICDs]
	}
	if len(ranked) == 0 {
		return static, nil
	}
	sort.Strings(ranked)

	var conflicts []string
	for _, name := range ranked {
		if len(missingColumns(static, name)) == 0 {
			conflicts = append(conflicts, name)
		}
	}
	if len(conflicts) > 0 {
		return dataframe.DataFrame{}, &ers.ColumnConflictError{Columns: conflicts}
	}

	columns := make([]column, 0, len(ranked))
	for _, name := range ranked {
		values := make([]string, len(subjects))
		for i := range values {
			values[i] = "0"
			if _, ok := diagnosed[name][i]; ok {
				values[i] = "1"
			}
		}
		columns = append(columns, column{name, values})
	}

	merged := static.CBind(newFrame(columns))
	if merged.Err != nil {
		return dataframe.DataFrame{}, errors.Wrap(merged.Err, "failed to add icd columns")
	}
	return merged, nil
}

// icdCategory upper-cases code, drops dots and whitespace, and keeps the first
// length characters.
func icdCategory(code string, length int) string {
	normalized := strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, code)
	if runes := []rune(normalized); length > 0 && len(runes) > length {
		return string(runes[:length])
	}
	return normalized
}
