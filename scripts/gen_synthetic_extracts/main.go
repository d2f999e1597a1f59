package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/hibor-causal/make-dataset/conf"
	"github.com/hibor-causal/make-dataset/dataset/gen"
	"github.com/hibor-causal/make-dataset/dataset/raw"
	"github.com/hibor-causal/make-dataset/log"
)

func main() {
	var (
		dir, start, treatment string
		subjects, maxStay     int
	)

	app := cli.NewApp()
	app.Name = "gen-synthetic-extracts"
	app.Usage = "Write a random set of raw extracts for make-dataset"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "dir",
			Usage:       "Existing directory to write the extracts to",
			Value:       ".",
			Destination: &dir,
		},
		cli.IntFlag{
			Name:        "subjects",
			Usage:       "Number of subjects",
			Value:       100,
			Destination: &subjects,
		},
		cli.IntFlag{
			Name:        "max-stay",
			Usage:       "Longest stay in days",
			Value:       14,
			Destination: &maxStay,
		},
		cli.StringFlag{
			Name:        "start",
			Usage:       "Earliest admission date (YYYY-MM-DD)",
			Value:       "2020-03-01",
			Destination: &start,
		},
		cli.StringFlag{
			Name:        "treatment",
			Usage:       "Name of the treatment drug",
			Value:       conf.GetEnv("TREATMENT_NAME"),
			Destination: &treatment,
		},
	}
	app.Action = func(c *cli.Context) error {
		cfg, err := conf.Load()
		if err != nil {
			return err
		}
		from, err := time.Parse("2006-01-02", start)
		if err != nil {
			return fmt.Errorf("invalid start date %q: %w", start, err)
		}

		opts := gen.Options{Subjects: subjects, Start: from, MaxStay: maxStay, Treatment: treatment}
		if err := gen.WriteExtracts(dir, raw.FileNamesFromConfig(cfg), opts); err != nil {
			return err
		}
		fmt.Fprintf(app.Writer, "Wrote synthetic extracts for %d subjects to %s\n", subjects, dir)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.ETL.Fatal(err)
	}
}
