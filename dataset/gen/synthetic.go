package gen

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	randomdata "github.com/Pallinder/go-randomdata"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hibor-causal/make-dataset/dataset/raw"
)

const datetimeLayout = "2006-01-02 15:04:05"

var drugNames = []string{"Paracetamol", "Amoxicillin", "Enoxaparin", "Dexamethasone", "Remdesivir", "Omeprazole", "Furosemide"}

// Value ranges of the numeric measurements
var numericClinical = map[string][2]int{
	"heart rate":       {50, 140},
	"respiratory rate": {10, 35},
	"temperature":      {35, 41},
	"weight":           {45, 130},
	"height":           {145, 200},
}

var labRanges = map[string][2]int{
	"CRP":         {1, 300},
	"D-dimer":     {0, 5},
	"Ferritin":    {20, 2000},
	"Lymphocytes": {0, 4},
	"Creatinine":  {40, 400},
}

var consciousness = []string{"alert", "voice", "pain", "unresponsive"}

var icdCodes = []string{"U07.1", "J18.9", "J18.0", "I10", "E11.9", "N17.9", "J96.0", "I48.0"}

// Options controls the size and shape of a synthetic extract set.
type Options struct {
	Subjects  int
	Start     time.Time
	MaxStay   int
	Treatment string
}

type weight float64

const (
	half    weight = 0.5
	quarter weight = 0.25
	less    weight = 0.1
)

// chance uses the weight value to decide whether an optional event happens
func chance(w weight) bool {
	return float64(w) >= randomdata.Decimal(1)
}

type stay struct {
	id        string
	admission time.Time
	days      int
}

type extract struct {
	name    string
	header  []string
	records [][]string
}

func (e *extract) add(record ...string) {
	e.records = append(e.records, record)
}

// WriteExtracts writes a random but schema-correct set of the seven raw
// extracts into dir, named after files.
func WriteExtracts(dir string, files raw.FileNames, opts Options) error {
	if opts.Subjects <= 0 {
		return fmt.Errorf("number of subjects must be positive, got %d", opts.Subjects)
	}
	if opts.MaxStay <= 0 {
		opts.MaxStay = 14
	}
	if opts.Treatment == "" {
		opts.Treatment = "HIBOR"
	}

	required := raw.RequiredFields()
	inpatientHeader := append(append([]string(nil), required["inpatient_records"]...), "age", "sex")
	inpatients := &extract{name: files.InpatientRecords, header: inpatientHeader}
	drugs := &extract{name: files.Drugs, header: required["drugs"]}
	clinical := &extract{name: files.ClinicalVars, header: required["clinical_vars"]}
	labs := &extract{name: files.Labs, header: required["labs"]}
	labsV2 := &extract{name: files.LabsV2, header: required["labs_v2"]}
	emergency := &extract{name: files.CodesEmergency, header: required["codes_emergency"]}
	inpatient := &extract{name: files.CodesInpatient, header: required["codes_inpatient"]}

	for i := 1; i <= opts.Subjects; i++ {
		s := stay{
			id:        strconv.Itoa(i),
			admission: opts.Start.Add(time.Duration(randomdata.Number(0, 60*24)) * time.Hour),
			days:      randomdata.Number(1, opts.MaxStay+1),
		}

		discharge := s.admission.Add(time.Duration(s.days*24-randomdata.Number(1, 12)) * time.Hour).Format(datetimeLayout)
		if chance(less) {
			discharge = ""
		}
		inpatients.add(s.id, s.admission.Format(datetimeLayout), discharge,
			strconv.Itoa(randomdata.Number(18, 100)), randomdata.StringSample("M", "F"))

		for day := 0; day < s.days; day++ {
			if chance(half) {
				drugs.add(s.id, opts.Treatment, s.at(day))
			}
			for _, name := range drugNames {
				if chance(quarter) {
					drugs.add(s.id, name, s.at(day))
				}
			}
			for name, r := range numericClinical {
				if day == 0 || chance(half) {
					clinical.add(s.id, name, decimal(r), s.at(day))
				}
			}
			if chance(half) {
				clinical.add(s.id, "consciousness", randomdata.StringSample(consciousness...), s.at(day))
			}
			for name, r := range labRanges {
				if chance(quarter) {
					labsV2.add(s.id, name, decimal(r), s.at(day))
				}
				if chance(less) {
					labs.add(s.id, name, decimal(r), s.at(day))
				}
			}
		}

		for n := randomdata.Number(1, 4); n > 0; n-- {
			emergency.add(s.id, randomdata.StringSample(icdCodes...))
		}
		for n := randomdata.Number(0, 3); n > 0; n-- {
			inpatient.add(s.id, randomdata.StringSample(icdCodes...))
		}
	}

	for _, e := range []*extract{inpatients, drugs, clinical, labs, labsV2, emergency, inpatient} {
		if err := writeCSV(filepath.Join(dir, e.name), e); err != nil {
			return errors.Wrapf(err, "failed to write %s", e.name)
		}
		logrus.Debugf("Wrote %d synthetic rows to %s", len(e.records), e.name)
	}
	return nil
}

// at returns a random time on the given day of the stay.
func (s stay) at(day int) string {
	t := s.admission.Add(time.Duration(day*24+randomdata.Number(0, 12)) * time.Hour)
	return t.Format(datetimeLayout)
}

func decimal(r [2]int) string {
	return strconv.FormatFloat(randomdata.Decimal(r[0], r[1], 1), 'f', 1, 64)
}

func writeCSV(path string, e *extract) error {
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logrus.Warnf("Failed to close file %s", err.Error())
		}
	}()

	w := csv.NewWriter(file)
	if err := w.Write(e.header); err != nil {
		return err
	}
	if err := w.WriteAll(e.records); err != nil {
		return err
	}
	return w.Error()
}
