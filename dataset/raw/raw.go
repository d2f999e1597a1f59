package raw

/******************************************************************************
This package is responsible for loading the raw clinical extracts.
Contents:
1. raw.go    the seven tables and ReadAllData
2. csv.go    CSV to dataframe conversion and column validation
3. source.go local and S3 locations
******************************************************************************/

import (
	"context"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hibor-causal/make-dataset/conf"
	c "github.com/hibor-causal/make-dataset/dataset/constants"
)

// Tables holds every raw extract. All values are strings.
type Tables struct {
	InpatientRecords dataframe.DataFrame
	Drugs            dataframe.DataFrame
	ClinicalVars     dataframe.DataFrame
	Labs             dataframe.DataFrame
	LabsV2           dataframe.DataFrame
	CodesEmergency   dataframe.DataFrame
	CodesInpatient   dataframe.DataFrame
}

// LabsFor returns the lab extract that feeds the downstream steps.
func (t *Tables) LabsFor(labSource string) dataframe.DataFrame {
	if labSource == c.LabSourceV1 {
		return t.Labs
	}
	return t.LabsV2
}

// FileNames are the names of the extracts inside the input location.
type FileNames struct {
	InpatientRecords string
	Drugs            string
	ClinicalVars     string
	Labs             string
	LabsV2           string
	CodesEmergency   string
	CodesInpatient   string
}

func FileNamesFromConfig(cfg conf.Config) FileNames {
	return FileNames{
		InpatientRecords: cfg.InpatientRecordsFile,
		Drugs:            cfg.DrugsFile,
		ClinicalVars:     cfg.ClinicalVarsFile,
		Labs:             cfg.LabsFile,
		LabsV2:           cfg.LabsV2File,
		CodesEmergency:   cfg.CodesEmergencyFile,
		CodesInpatient:   cfg.CodesInpatientFile,
	}
}

var (
	inpatientFields   = []string{c.SubjectColumn, c.AdmissionColumn, c.DischargeColumn}
	drugFields        = []string{c.SubjectColumn, c.DrugNameColumn, c.DatetimeColumn}
	clinicalVarFields = []string{c.SubjectColumn, c.VariableColumn, c.ValueColumn, c.DatetimeColumn}
	labFields         = []string{c.SubjectColumn, c.TestNameColumn, c.ValueColumn, c.DatetimeColumn}
	codeFields        = []string{c.SubjectColumn, c.ICDCodeColumn}
)

// RequiredFields returns the columns the named extract must carry, keyed by table name.
func RequiredFields() map[string][]string {
	return map[string][]string{
		"inpatient_records": inpatientFields,
		"drugs":             drugFields,
		"clinical_vars":     clinicalVarFields,
		"labs":              labFields,
		"labs_v2":           labFields,
		"codes_emergency":   codeFields,
		"codes_inpatient":   codeFields,
	}
}

type tableFile struct {
	table    string
	file     string
	required []string
	dest     *dataframe.DataFrame
}

// ReadAllData loads the seven raw extracts from source. The first table that
// fails to load stops the read.
func ReadAllData(ctx context.Context, source Source, files FileNames, logger logrus.FieldLogger) (*Tables, error) {
	tables := &Tables{}
	tableFiles := []tableFile{
		{"inpatient_records", files.InpatientRecords, inpatientFields, &tables.InpatientRecords},
		{"drugs", files.Drugs, drugFields, &tables.Drugs},
		{"clinical_vars", files.ClinicalVars, clinicalVarFields, &tables.ClinicalVars},
		{"labs", files.Labs, labFields, &tables.Labs},
		{"labs_v2", files.LabsV2, labFields, &tables.LabsV2},
		{"codes_emergency", files.CodesEmergency, codeFields, &tables.CodesEmergency},
		{"codes_inpatient", files.CodesInpatient, codeFields, &tables.CodesInpatient},
	}

	for _, tf := range tableFiles {
		df, err := readTable(ctx, source, tf)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s from %s", tf.file, source.Location())
		}
		*tf.dest = df

		logger.WithFields(logrus.Fields{"table": tf.table, "file": tf.file}).
			Debugf("Loaded %d rows, %d columns", df.Nrow(), df.Ncol())
	}

	return tables, nil
}

func readTable(ctx context.Context, source Source, tf tableFile) (dataframe.DataFrame, error) {
	rc, err := source.Open(ctx, tf.file)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer rc.Close()

	df, err := toDataFrame(rc)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	if err := validate(tf.table, df, tf.required); err != nil {
		return dataframe.DataFrame{}, err
	}

	return df, nil
}
