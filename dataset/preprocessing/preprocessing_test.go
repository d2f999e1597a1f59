package preprocessing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/hibor-causal/make-dataset/conf"
	c "github.com/hibor-causal/make-dataset/dataset/constants"
	ers "github.com/hibor-causal/make-dataset/dataset/errors"
	"github.com/hibor-causal/make-dataset/dataset/raw"
	"github.com/hibor-causal/make-dataset/dataset/testUtils"
)

type PreprocessingTestSuite struct {
	suite.Suite
	tables *raw.Tables
	tl     *Timeline
}

func TestPreprocessingTestSuite(t *testing.T) {
	suite.Run(t, new(PreprocessingTestSuite))
}

func (s *PreprocessingTestSuite) SetupTest() {
	cfg, err := conf.Load()
	s.Require().NoError(err)

	logger, _ := testUtils.NullLogger()
	s.tables, err = raw.ReadAllData(context.Background(), &raw.LocalSource{Dir: testUtils.ExtractsPath(s.T())},
		raw.FileNamesFromConfig(cfg), logger)
	s.Require().NoError(err)

	s.tl = NewTimeline(logger, 0, s.tables.InpatientRecords,
		s.tables.Drugs, s.tables.ClinicalVars, s.tables.LabsV2)
}

func (s *PreprocessingTestSuite) TestTimeline() {
	assert.Equal(s.T(), []string{"1", "2", "3"}, s.tl.Subjects())
	assert.Equal(s.T(), 3, s.tl.Len("1"))
	assert.Equal(s.T(), 2, s.tl.Len("2"))
	// No discharge, followed until the last event
	assert.Equal(s.T(), 2, s.tl.Len("3"))
	assert.Equal(s.T(), 0, s.tl.Len("9"))
	assert.Equal(s.T(), 7, s.tl.Rows())

	day, ok := s.tl.Day("1", time.Date(2020, 3, 2, 23, 59, 0, 0, time.UTC))
	assert.True(s.T(), ok)
	assert.Equal(s.T(), 1, day)

	_, ok = s.tl.Day("1", time.Date(2020, 2, 29, 23, 59, 0, 0, time.UTC))
	assert.False(s.T(), ok)
	_, ok = s.tl.Day("1", time.Date(2020, 3, 4, 0, 0, 0, 0, time.UTC))
	assert.False(s.T(), ok)
	_, ok = s.tl.Day("9", time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.False(s.T(), ok)
}

func (s *PreprocessingTestSuite) TestTimelineMaxNumDays() {
	logger, _ := testUtils.NullLogger()
	tl := NewTimeline(logger, 1, s.tables.InpatientRecords, s.tables.Drugs)
	for _, id := range tl.Subjects() {
		assert.Equal(s.T(), 1, tl.Len(id))
	}
	assert.Equal(s.T(), 3, tl.Rows())
}

func (s *PreprocessingTestSuite) TestTimelineSkipsUnparseableAdmissions() {
	logger, hook := testUtils.NullLogger()
	inpatients := testUtils.Frame(s.T(), [][]string{
		{"patient_id", "admission_datetime", "discharge_datetime"},
		{"1", "not a date", ""},
		{"2", "2020-01-01", "2019-12-30"},
	})
	tl := NewTimeline(logger, 0, inpatients)
	assert.Equal(s.T(), []string{"2"}, tl.Subjects())
	// Discharge before admission still leaves a single day
	assert.Equal(s.T(), 1, tl.Len("2"))

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(s.T(), "inpatient_records", entry.Data["table"])
		}
	}
	assert.True(s.T(), warned)
}

func (s *PreprocessingTestSuite) TestTimelineLongStay() {
	inpatients := testUtils.Frame(s.T(), [][]string{
		{"patient_id", "admission_datetime", "discharge_datetime"},
		{"1", "2020-01-01", "2021-06-01"},
		{"2", "2020-01-01", "2020-01-05"},
	})

	logger, hook := testUtils.NullLogger()
	tl := NewTimeline(logger, 0, inpatients)
	assert.Equal(s.T(), 518, tl.Len("1"))

	var warnings []*logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings = append(warnings, entry)
		}
	}
	s.Require().Len(warnings, 1)
	assert.Equal(s.T(), "1", warnings[0].Data["subject"])
	assert.Contains(s.T(), warnings[0].Message, "518 day(s)")

	// A cap keeps the grid bounded and quiet
	logger, hook = testUtils.NullLogger()
	tl = NewTimeline(logger, 30, inpatients)
	assert.Equal(s.T(), 30, tl.Len("1"))
	for _, entry := range hook.AllEntries() {
		assert.NotEqual(s.T(), logrus.WarnLevel, entry.Level)
	}
}

func (s *PreprocessingTestSuite) TestGetDrugsTimeseries() {
	logger, hook := testUtils.NullLogger()
	df, err := GetDrugsTimeseries(logger, s.tl, s.tables.Drugs, 100, "HIBOR")
	s.Require().NoError(err)

	assert.Equal(s.T(), [][]string{
		{"patient_id", "day", "drug_Amoxicillin", "drug_HIBOR", "drug_Paracetamol"},
		{"1", "0", "0", "1", "1"},
		{"1", "1", "0", "1", "0"},
		{"1", "2", "0", "0", "0"},
		{"2", "0", "0", "0", "1"},
		{"2", "1", "1", "0", "0"},
		{"3", "0", "0", "0", "0"},
		{"3", "1", "0", "1", "0"},
	}, df.Records())

	// "not a date" is reported once
	var warnings int
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
			assert.Contains(s.T(), entry.Message, "Skipped 1 row(s)")
		}
	}
	assert.Equal(s.T(), 1, warnings)
}

func (s *PreprocessingTestSuite) TestGetDrugsTimeseriesCap() {
	tests := []struct {
		name      string
		max       int
		treatment string
		expected  []string
	}{
		{"treatment_first", 1, "HIBOR", []string{"drug_HIBOR"}},
		{"by_count", 2, "", []string{"drug_HIBOR", "drug_Paracetamol"}},
		{"treatment_then_count", 2, "amox", []string{"drug_Amoxicillin", "drug_HIBOR"}},
		{"unlimited", 0, "HIBOR", []string{"drug_Amoxicillin", "drug_HIBOR", "drug_Paracetamol"}},
	}

	for _, tt := range tests {
		s.T().Run(tt.name, func(t *testing.T) {
			logger, _ := testUtils.NullLogger()
			df, err := GetDrugsTimeseries(logger, s.tl, s.tables.Drugs, tt.max, tt.treatment)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, nonKeyColumns(df))
			assert.Equal(t, 7, df.Nrow())
		})
	}

	logger, _ := testUtils.NullLogger()
	_, err := GetDrugsTimeseries(logger, s.tl, s.tables.Drugs, -1, "HIBOR")
	var invalid *ers.InvalidArgumentError
	assert.True(s.T(), errors.As(err, &invalid))
}

func (s *PreprocessingTestSuite) TestSplitTreatCovariates() {
	logger, _ := testUtils.NullLogger()
	drugs, err := GetDrugsTimeseries(logger, s.tl, s.tables.Drugs, 100, "HIBOR")
	s.Require().NoError(err)

	treat, covariates, err := SplitTreatCovariates(logger, drugs, "hibor")
	s.Require().NoError(err)
	assert.Equal(s.T(), []string{"patient_id", "day", "drug_HIBOR"}, treat.Names())
	assert.Equal(s.T(), []string{"patient_id", "day", "drug_Amoxicillin", "drug_Paracetamol"}, covariates.Names())
	assert.Equal(s.T(), drugs.Nrow(), treat.Nrow())
	assert.Equal(s.T(), drugs.Nrow(), covariates.Nrow())
	assert.Equal(s.T(), drugs.Col("drug_HIBOR").Records(), treat.Col("drug_HIBOR").Records())

	// Partition of the drug columns
	union := append(nonKeyColumns(treat), nonKeyColumns(covariates)...)
	assert.ElementsMatch(s.T(), nonKeyColumns(drugs), union)
}

func (s *PreprocessingTestSuite) TestSplitTreatCovariatesNoMatch() {
	logger, hook := testUtils.NullLogger()
	drugs, err := GetDrugsTimeseries(logger, s.tl, s.tables.Drugs, 100, "HIBOR")
	s.Require().NoError(err)
	hook.Reset()

	treat, covariates, err := SplitTreatCovariates(logger, drugs, "aspirin")
	s.Require().NoError(err)
	assert.Equal(s.T(), keyColumns, treat.Names())
	assert.Equal(s.T(), drugs.Names(), covariates.Names())

	var warned bool
	for _, entry := range hook.AllEntries() {
		warned = warned || entry.Level == logrus.WarnLevel
	}
	assert.True(s.T(), warned)
}

func (s *PreprocessingTestSuite) TestSplitTreatCovariatesErrors() {
	logger, _ := testUtils.NullLogger()

	_, _, err := SplitTreatCovariates(logger, s.tables.Drugs, "  ")
	var invalid *ers.InvalidArgumentError
	assert.True(s.T(), errors.As(err, &invalid))
	assert.Contains(s.T(), err.Error(), c.EmptyTreatmentErr)

	_, _, err = SplitTreatCovariates(logger, s.tables.Drugs, "HIBOR")
	var missing *ers.MissingColumnsError
	assert.True(s.T(), errors.As(err, &missing))
	assert.Equal(s.T(), []string{"day"}, missing.Columns)
}

func (s *PreprocessingTestSuite) TestGetStaticVars() {
	logger, _ := testUtils.NullLogger()
	df, err := GetStaticVars(logger, s.tl, s.tables.InpatientRecords, s.tables.ClinicalVars, s.tables.LabsV2,
		[]string{"weight", "height"}, []string{"crp"})
	s.Require().NoError(err)

	assert.Equal(s.T(), [][]string{
		{"patient_id", "age", "sex", "length_of_stay", "clin_weight_baseline", "clin_height_baseline", "lab_crp_baseline"},
		{"1", "54", "M", "3", "70.5", "", "12.5"},
		{"2", "67", "F", "2", "", "", ""},
		{"3", "71", "F", "2", "65", "", "30"},
	}, df.Records())
}

func (s *PreprocessingTestSuite) TestGetStaticVarsEarliestAdmission() {
	logger, _ := testUtils.NullLogger()
	inpatients := testUtils.Frame(s.T(), [][]string{
		{"patient_id", "admission_datetime", "discharge_datetime", "ward"},
		{"7", "2021-05-03", "2021-05-04", "B"},
		{"7", "2021-05-01", "2021-05-02", "A"},
	})
	tl := NewTimeline(logger, 0, inpatients)
	df, err := GetStaticVars(logger, tl, inpatients, s.tables.ClinicalVars, s.tables.LabsV2, nil, nil)
	s.Require().NoError(err)

	assert.Equal(s.T(), [][]string{
		{"patient_id", "ward", "length_of_stay"},
		{"7", "A", "4"},
	}, df.Records())
}

func (s *PreprocessingTestSuite) TestGetStaticVarsMissingMarkers() {
	logger, _ := testUtils.NullLogger()
	inpatients := testUtils.Frame(s.T(), [][]string{
		{"patient_id", "admission_datetime", "discharge_datetime", "age", "sex"},
		{"1", "2020-01-01", "2020-01-02", "NA", "M"},
		{"2", "2020-01-01", "NA", "61", "NaN"},
	})
	clinical := testUtils.Frame(s.T(), [][]string{
		{"patient_id", "variable", "value", "datetime"},
		{"1", "weight", "NA", "2020-01-01 08:00:00"},
		{"1", "weight", "80", "2020-01-02 08:00:00"},
	})
	tl := NewTimeline(logger, 0, inpatients, clinical)
	df, err := GetStaticVars(logger, tl, inpatients, clinical, s.tables.LabsV2, []string{"weight"}, nil)
	s.Require().NoError(err)

	// Pass-through cells are copied verbatim, baselines skip missing markers
	assert.Equal(s.T(), [][]string{
		{"patient_id", "age", "sex", "length_of_stay", "clin_weight_baseline"},
		{"1", "NA", "M", "2", "80"},
		{"2", "61", "NaN", "1", ""},
	}, df.Records())
}

func (s *PreprocessingTestSuite) TestGetStaticVarsColumnConflict() {
	logger, _ := testUtils.NullLogger()
	inpatients := testUtils.Frame(s.T(), [][]string{
		{"patient_id", "admission_datetime", "discharge_datetime", "sex", "length_of_stay", "clin_weight_baseline"},
		{"1", "2020-01-01", "2020-01-02", "M", "9", "75"},
	})
	tl := NewTimeline(logger, 0, inpatients)

	_, err := GetStaticVars(logger, tl, inpatients, s.tables.ClinicalVars, s.tables.LabsV2, []string{"weight"}, nil)
	var conflict *ers.ColumnConflictError
	s.Require().True(errors.As(err, &conflict))
	assert.Equal(s.T(), []string{"length_of_stay", "clin_weight_baseline"}, conflict.Columns)
}

func (s *PreprocessingTestSuite) TestGetDynamicVars() {
	logger, _ := testUtils.NullLogger()
	df, err := GetDynamicVars(logger, s.tl, s.tables.ClinicalVars, s.tables.LabsV2)
	s.Require().NoError(err)

	assert.Equal(s.T(), [][]string{
		{"patient_id", "day", "clin_consciousness", "clin_heart_rate", "clin_weight", "lab_CRP", "lab_D_dimer"},
		{"1", "0", "", "85", "70.5", "", ""},
		{"1", "1", "", "", "71", "10", ""},
		{"1", "2", "", "", "", "", ""},
		{"2", "0", "confused", "", "", "", "0.8"},
		{"2", "1", "", "100", "", "", ""},
		{"3", "0", "", "", "65", "", ""},
		{"3", "1", "", "", "", "30", ""},
	}, df.Records())
}

func (s *PreprocessingTestSuite) TestAppendMoreCovariates() {
	logger, _ := testUtils.NullLogger()
	drugs, err := GetDrugsTimeseries(logger, s.tl, s.tables.Drugs, 100, "HIBOR")
	s.Require().NoError(err)
	_, covariates, err := SplitTreatCovariates(logger, drugs, "HIBOR")
	s.Require().NoError(err)
	dynamic, err := GetDynamicVars(logger, s.tl, s.tables.ClinicalVars, s.tables.LabsV2)
	s.Require().NoError(err)

	merged, err := AppendMoreCovariates(dynamic, covariates)
	s.Require().NoError(err)
	assert.Equal(s.T(), append(dynamic.Names(), "drug_Amoxicillin", "drug_Paracetamol"), merged.Names())
	assert.Equal(s.T(), dynamic.Nrow(), merged.Nrow())
	assert.Equal(s.T(), covariates.Col("drug_Paracetamol").Records(), merged.Col("drug_Paracetamol").Records())

	// Nothing to add
	unchanged, err := AppendMoreCovariates(dynamic, covariates.Select(keyColumns))
	s.Require().NoError(err)
	assert.Equal(s.T(), dynamic.Records(), unchanged.Records())
}

func (s *PreprocessingTestSuite) TestAppendMoreCovariatesJoin() {
	dynamic := testUtils.Frame(s.T(), [][]string{
		{"patient_id", "day", "clin_weight"},
		{"1", "0", "70"},
		{"1", "1", ""},
		{"2", "0", "80"},
	})
	more := testUtils.Frame(s.T(), [][]string{
		{"day", "patient_id", "drug_X"},
		{"0", "2", "1"},
		{"0", "1", "0"},
	})

	merged, err := AppendMoreCovariates(dynamic, more)
	s.Require().NoError(err)
	assert.Equal(s.T(), [][]string{
		{"patient_id", "day", "clin_weight", "drug_X"},
		{"1", "0", "70", "0"},
		{"1", "1", "", ""},
		{"2", "0", "80", "1"},
	}, merged.Records())
}

func (s *PreprocessingTestSuite) TestAppendMoreCovariatesErrors() {
	dynamic := testUtils.Frame(s.T(), [][]string{
		{"patient_id", "day", "drug_X"},
		{"1", "0", "1"},
	})

	_, err := AppendMoreCovariates(dynamic, dynamic)
	var conflict *ers.ColumnConflictError
	assert.True(s.T(), errors.As(err, &conflict))
	assert.Equal(s.T(), []string{"drug_X"}, conflict.Columns)

	_, err = AppendMoreCovariates(dynamic, testUtils.Frame(s.T(), [][]string{{"patient_id", "drug_Y"}, {"1", "0"}}))
	var missing *ers.MissingColumnsError
	assert.True(s.T(), errors.As(err, &missing))
	assert.Equal(s.T(), []string{"day"}, missing.Columns)
}

func (s *PreprocessingTestSuite) TestAddICDsToStaticVars() {
	logger, _ := testUtils.NullLogger()
	static, err := GetStaticVars(logger, s.tl, s.tables.InpatientRecords, s.tables.ClinicalVars, s.tables.LabsV2,
		[]string{"weight", "height"}, nil)
	s.Require().NoError(err)

	df, err := AddICDsToStaticVars(static, s.tables.CodesEmergency, s.tables.CodesInpatient, 3, 100)
	s.Require().NoError(err)
	assert.Equal(s.T(), [][]string{
		{"patient_id", "age", "sex", "length_of_stay", "clin_weight_baseline", "clin_height_baseline", "icd_I10", "icd_J18", "icd_U07"},
		{"1", "54", "M", "3", "70.5", "", "1", "1", "0"},
		{"2", "67", "F", "2", "", "", "1", "0", "0"},
		{"3", "71", "F", "2", "65", "", "0", "0", "1"},
	}, df.Records())

	// The most common category survives the cap
	capped, err := AddICDsToStaticVars(static, s.tables.CodesEmergency, s.tables.CodesInpatient, 3, 1)
	s.Require().NoError(err)
	assert.Equal(s.T(), []string{"1", "1", "0"}, capped.Col("icd_I10").Records())
	assert.Equal(s.T(), static.Ncol()+1, capped.Ncol())

	full, err := AddICDsToStaticVars(static, s.tables.CodesEmergency, s.tables.CodesInpatient, 0, 0)
	s.Require().NoError(err)
	assert.Equal(s.T(), append(static.Names(), "icd_I10", "icd_J180", "icd_J189", "icd_U071"), full.Names())

	_, err = AddICDsToStaticVars(static, s.tables.CodesEmergency, s.tables.CodesInpatient, -1, 0)
	var invalid *ers.InvalidArgumentError
	assert.True(s.T(), errors.As(err, &invalid))

	_, err = AddICDsToStaticVars(df, s.tables.CodesEmergency, s.tables.CodesInpatient, 3, 100)
	var conflict *ers.ColumnConflictError
	assert.True(s.T(), errors.As(err, &conflict))
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		prefix, raw, expected string
	}{
		{"clin_", "heart rate", "clin_heart_rate"},
		{"lab_", " D-dimer ", "lab_D_dimer"},
		{"drug_", "Co-amoxiclav (IV)", "drug_Co_amoxiclav_IV_"},
		{"icd_", "J18", "icd_J18"},
		{"drug_", "  ", ""},
		{"drug_", "%%", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, columnName(tt.prefix, tt.raw), tt.raw)
	}
}

func TestSortSubjects(t *testing.T) {
	ids := []string{"10", "9", "1"}
	sortSubjects(ids)
	assert.Equal(t, []string{"1", "9", "10"}, ids)

	ids = []string{"b", "10", "a2", "9"}
	sortSubjects(ids)
	assert.Equal(t, []string{"10", "9", "a2", "b"}, ids)
}

func TestIcdCategory(t *testing.T) {
	assert.Equal(t, "J18", icdCategory("j18.9", 3))
	assert.Equal(t, "J189", icdCategory(" j 18.9 ", 0))
	assert.Equal(t, "I1", icdCategory("I10", 2))
	assert.Equal(t, "I10", icdCategory("I10", 5))
}

func TestAggregate(t *testing.T) {
	at := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2.5", aggregate([]observation{{"2", at, 0}, {"3", at, 1}}))
	assert.Equal(t, "-1", aggregate([]observation{{"-1", at, 0}}))
	assert.Equal(t, "high", aggregate([]observation{{"high", at.Add(time.Hour), 0}, {"4", at, 1}}))
	// Same timestamp, later row wins
	assert.Equal(t, "b", aggregate([]observation{{"a", at, 0}, {"b", at, 1}}))
}
