package preprocessing

import (
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	c "github.com/hibor-causal/make-dataset/dataset/constants"
	ers "github.com/hibor-causal/make-dataset/dataset/errors"
)

// SplitTreatCovariates partitions the drug columns of df into the treatment
// columns and the remaining covariates. Both results keep the key columns.
func SplitTreatCovariates(logger logrus.FieldLogger, df dataframe.DataFrame, treatment string) (treat, covariates dataframe.DataFrame, err error) {
	treatment = strings.TrimSpace(treatment)
	if treatment == "" {
		return treat, covariates, &ers.InvalidArgumentError{Msg: c.EmptyTreatmentErr}
	}
	if missing := missingColumns(df, keyColumns...); len(missing) > 0 {
		return treat, covariates, &ers.MissingColumnsError{Table: c.BuildingDrugsDF, Columns: missing}
	}

	fold := cases.Fold()
	needle := fold.String(treatment)
	treatCols := append([]string(nil), keyColumns...)
	covCols := append([]string(nil), keyColumns...)
	for _, name := range nonKeyColumns(df) {
		if isTreatmentColumn(fold, name, needle) {
			treatCols = append(treatCols, name)
		} else {
			covCols = append(covCols, name)
		}
	}

	if len(treatCols) == len(keyColumns) {
		logger.Warnf("No drug column matches treatment %q", treatment)
	}
	logger.WithField("treatment", treatment).
		Debugf("%d treatment column(s), %d covariate column(s)", len(treatCols)-len(keyColumns), len(covCols)-len(keyColumns))

	treat = df.Select(treatCols)
	if treat.Err != nil {
		return treat, covariates, errors.Wrap(treat.Err, "failed to select treatment columns")
	}
	covariates = df.Select(covCols)
	if covariates.Err != nil {
		return treat, covariates, errors.Wrap(covariates.Err, "failed to select covariate columns")
	}
	return treat, covariates, nil
}
