package main

import (
	"os"

	"github.com/hibor-causal/make-dataset/dataset/datasetcli"
	"github.com/hibor-causal/make-dataset/log"
)

func main() {
	app := datasetcli.GetApp()
	err := app.Run(os.Args)
	if err != nil {
		log.ETL.Fatal(err)
	}
}
