package log

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultTimestampFormat = "2006-01-02 15:04:05,000"

// PipelineFormatter renders entries as
//
//	<time> - <application> - <LEVEL> - <message> key=value ...
//
// Fields other than application are appended in key order.
type PipelineFormatter struct {
	TimestampFormat string
}

func (f *PipelineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	layout := f.TimestampFormat
	if layout == "" {
		layout = defaultTimestampFormat
	}

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	name, _ := entry.Data["application"].(string)
	fmt.Fprintf(b, "%s - %s - %s - %s", entry.Time.Format(layout), name,
		strings.ToUpper(entry.Level.String()), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "application" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')

	return b.Bytes(), nil
}
