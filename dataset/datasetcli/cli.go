package datasetcli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/hibor-causal/make-dataset/conf"
	"github.com/hibor-causal/make-dataset/dataset/constants"
	ers "github.com/hibor-causal/make-dataset/dataset/errors"
	"github.com/hibor-causal/make-dataset/dataset/metrics"
	"github.com/hibor-causal/make-dataset/dataset/output"
	"github.com/hibor-causal/make-dataset/dataset/pipeline"
	"github.com/hibor-causal/make-dataset/dataset/raw"
	"github.com/hibor-causal/make-dataset/log"
)

func GetApp() *cli.App {
	return setUpApp(log.ETL)
}

func setUpApp(logger logrus.FieldLogger) *cli.App {
	app := cli.NewApp()
	app.Name = constants.Name
	app.Usage = constants.Usage
	app.Version = constants.Version
	app.ArgsUsage = "INPUT_FILEPATH OUTPUT_FILEPATH"
	app.Description = "Reads the raw extracts found in INPUT_FILEPATH (a directory or s3://bucket/prefix) " +
		"and writes OUTPUT_FILEPATH{dynamic_vars,static_vars,treatment_vars}.csv."
	app.Action = func(c *cli.Context) error {
		if c.NArg() != 2 {
			_ = cli.ShowAppHelp(c)
			return &ers.InvalidArgumentError{Msg: fmt.Sprintf(constants.ArgCountErr, c.NArg())}
		}
		return makeDataset(context.Background(), app.Writer, logger, c.Args().Get(0), c.Args().Get(1))
	}
	return app
}

func makeDataset(ctx context.Context, w io.Writer, logger logrus.FieldLogger, inputPath, outputPath string) error {
	cfg, err := conf.Load()
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	source, err := raw.NewSource(inputPath, cfg, logger)
	if err != nil {
		return err
	}
	// Fail before any processing
	if err := source.Exists(ctx); err != nil {
		return err
	}

	sink, err := output.NewSink(outputPath, cfg, logger)
	if err != nil {
		return err
	}

	timer := metrics.GetTimer(logger)
	defer timer.Close()
	ctx = metrics.NewContext(ctx, timer)

	p := &pipeline.Pipeline{Logger: logger, Config: cfg, Source: source, Sink: sink}
	result, err := p.Run(ctx, outputPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s complete\n", result.RunID)
	output.RenderSummary(w, result.Summaries)
	return nil
}
