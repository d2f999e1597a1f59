package pipeline

import (
	"context"

	"github.com/go-gota/gota/dataframe"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hibor-causal/make-dataset/conf"
	c "github.com/hibor-causal/make-dataset/dataset/constants"
	"github.com/hibor-causal/make-dataset/dataset/metrics"
	"github.com/hibor-causal/make-dataset/dataset/output"
	pp "github.com/hibor-causal/make-dataset/dataset/preprocessing"
	"github.com/hibor-causal/make-dataset/dataset/raw"
)

// Pipeline turns the raw extracts found in Source into the three output
// tables written to Sink.
type Pipeline struct {
	Logger logrus.FieldLogger
	Config conf.Config
	Source raw.Source
	Sink   output.Sink
}

type Result struct {
	RunID     string
	Summaries []output.Summary
}

// Run executes every step in order and stops at the first failure. Outputs
// already written by a failed run are left in place.
func (p *Pipeline) Run(ctx context.Context, outputPrefix string) (*Result, error) {
	runID := uuid.NewRandom().String()
	logger := p.Logger.WithFields(logrus.Fields{"run_id": runID})
	ctx, closeRun := metrics.NewParent(ctx, c.Name)
	defer closeRun()

	logger.WithFields(logrus.Fields{"input": p.Source.Location(), "output": outputPrefix}).
		Info(c.MakingDataset)

	var (
		tables                       *raw.Tables
		tl                           *pp.Timeline
		labs                         dataframe.DataFrame
		drugs, treatment, covariates dataframe.DataFrame
		static, dynamic              dataframe.DataFrame
		summaries                    []output.Summary
	)

	steps := []struct {
		name string
		run  func() error
	}{
		{c.ReadingRawData, func() (err error) {
			tables, err = raw.ReadAllData(ctx, p.Source, raw.FileNamesFromConfig(p.Config), logger)
			if err == nil {
				labs = tables.LabsFor(p.Config.LabSource)
			}
			return err
		}},
		{c.BuildingDrugsDF, func() (err error) {
			tl = pp.NewTimeline(logger, p.Config.MaxNumDays, tables.InpatientRecords,
				tables.Drugs, tables.ClinicalVars, labs)
			drugs, err = pp.GetDrugsTimeseries(logger, tl, tables.Drugs, p.Config.MaxNumDrugs, p.Config.TreatmentName)
			return err
		}},
		{c.SplittingDrugs, func() (err error) {
			treatment, covariates, err = pp.SplitTreatCovariates(logger, drugs, p.Config.TreatmentName)
			return err
		}},
		{c.BuildingStatic, func() (err error) {
			static, err = pp.GetStaticVars(logger, tl, tables.InpatientRecords, tables.ClinicalVars, labs,
				p.Config.StaticClinicalVars, p.Config.StaticLabVars)
			return err
		}},
		{c.ProcessingLabs, func() (err error) {
			dynamic, err = pp.GetDynamicVars(logger, tl, tables.ClinicalVars, labs)
			return err
		}},
		{c.MergingDynamic, func() (err error) {
			dynamic, err = pp.AppendMoreCovariates(dynamic, covariates)
			return err
		}},
		{c.GettingICDs, func() (err error) {
			static, err = pp.AddICDsToStaticVars(static, tables.CodesEmergency, tables.CodesInpatient,
				p.Config.ICDCodeLength, p.Config.MaxNumICDs)
			return err
		}},
		{c.Saving, func() (err error) {
			summaries, err = output.WriteTables(ctx, p.Sink, outputPrefix,
				output.Tables{Dynamic: dynamic, Static: static, Treatment: treatment})
			return err
		}},
	}

	for _, step := range steps {
		logger.Info(step.name)
		closeStep := metrics.NewChild(ctx, step.name)
		err := step.run()
		closeStep()
		if err != nil {
			return nil, errors.Wrapf(err, "step %q failed", step.name)
		}
	}

	for _, s := range summaries {
		logger.WithField("file", s.Path).Infof("Wrote %d rows, %d columns", s.Rows, s.Cols)
	}
	return &Result{RunID: runID, Summaries: summaries}, nil
}
