package raw

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/dimchansky/utfbom"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"

	ers "github.com/hibor-causal/make-dataset/dataset/errors"
)

func toDataFrame(r io.Reader) (dataframe.DataFrame, error) {
	// Trim the Byte Order Marker if it's present
	// See: https://github.com/golang/go/issues/33887
	data, err := io.ReadAll(utfbom.SkipOnly(r))
	if err != nil {
		return dataframe.DataFrame{}, errors.Wrap(err, "failed to read extract")
	}

	// Keep NA cells as read, preprocessing decides what is missing
	df := dataframe.ReadCSV(bytes.NewReader(data), dataframe.HasHeader(true), dataframe.DetectTypes(false),
		dataframe.NaNValues(nil))
	if df.Err == nil {
		return df, nil
	}

	// A header without rows is a valid, empty extract
	if header, ok := headerOnly(data); ok {
		return emptyFrame(header), nil
	}

	return df, df.Err
}

// headerOnly reports whether data holds exactly one CSV record.
func headerOnly(data []byte) ([]string, bool) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil || len(records) != 1 {
		return nil, false
	}
	return records[0], true
}

func emptyFrame(header []string) dataframe.DataFrame {
	columns := make([]series.Series, 0, len(header))
	for _, name := range header {
		columns = append(columns, series.New([]string{}, series.String, name))
	}
	return dataframe.New(columns...)
}

func validate(table string, df dataframe.DataFrame, required []string) error {
	fields := df.Names()
	m := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		m[field] = struct{}{}
	}

	var missing []string
	for _, r := range required {
		if _, ok := m[r]; !ok {
			missing = append(missing, r)
		}
	}

	if len(missing) > 0 {
		return &ers.MissingColumnsError{Table: table, Columns: missing}
	}
	return nil
}
