package output

import (
	"context"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	c "github.com/hibor-causal/make-dataset/dataset/constants"
)

// Tables are the three output tables of a run.
type Tables struct {
	Dynamic   dataframe.DataFrame
	Static    dataframe.DataFrame
	Treatment dataframe.DataFrame
}

// Summary describes one written file.
type Summary struct {
	Path string
	Rows int
	Cols int
}

// WriteTables writes the dynamic, static and treatment tables, in that order,
// to prefix followed by the file name. The prefix is not treated as a directory:
// "out/run1_" produces "out/run1_dynamic_vars.csv".
func WriteTables(ctx context.Context, sink Sink, prefix string, tables Tables) ([]Summary, error) {
	files := []struct {
		name string
		df   dataframe.DataFrame
	}{
		{c.DynamicVarsFile, tables.Dynamic},
		{c.StaticVarsFile, tables.Static},
		{c.TreatmentVarsFile, tables.Treatment},
	}

	summaries := make([]Summary, 0, len(files))
	for _, f := range files {
		path := prefix + f.name
		if err := writeCSV(ctx, sink, path, f.df); err != nil {
			return summaries, errors.Wrapf(err, "failed to write %s", path)
		}
		summaries = append(summaries, Summary{Path: path, Rows: f.df.Nrow(), Cols: f.df.Ncol()})
	}
	return summaries, nil
}

func writeCSV(ctx context.Context, sink Sink, path string, df dataframe.DataFrame) (err error) {
	if df.Err != nil {
		return df.Err
	}

	w, err := sink.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
	}()

	return df.WriteCSV(w)
}

// RenderSummary prints summaries as a table.
func RenderSummary(w io.Writer, summaries []Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Rows", "Columns"})
	for _, s := range summaries {
		table.Append([]string{s.Path, strconv.Itoa(s.Rows), strconv.Itoa(s.Cols)})
	}
	table.Render()
}
