package testUtils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/otiai10/copy"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/hibor-causal/make-dataset/conf"
)

// PrintSeparator prints a line of stars to stdout
func PrintSeparator() {
	fmt.Println("**********************************************************************************")
}

func setEnv(why, key, value string) {
	if err := conf.SetEnv(&testing.T{}, key, value); err != nil {
		log.Printf("Error %s env value %s to %s\n", why, key, value)
	}
}

// SetAndRestoreEnvKey replaces the current value of the env var key,
// returning a function which can be used to restore the original value
func SetAndRestoreEnvKey(key, value string) func() {
	originalValue := conf.GetEnv(key)
	setEnv("setting", key, value)
	return func() {
		setEnv("restoring", key, originalValue)
	}
}

// ExtractsPath locates the shared fixture extracts by looking up the directory tree.
func ExtractsPath(t *testing.T) string {
	dir := filepath.Join("shared_files", "extracts")
	for i := 0; i <= 5; i++ {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		// look one more level up
		dir = filepath.Join("..", dir)
	}
	t.Fatalf("unable to locate shared_files/extracts in file path")
	return ""
}

// CopyToTemporaryDirectory copies all of the content found at src into a temporary directory.
// The path to the temporary directory is returned along with a function that can be called to clean up the data.
func CopyToTemporaryDirectory(t *testing.T, src string) (string, func()) {
	newPath, err := os.MkdirTemp("", "*")
	if err != nil {
		t.Fatalf("Failed to create temporary directory %s", err.Error())
	}

	if err = copy.Copy(src, newPath); err != nil {
		t.Fatalf("Failed to copy contents from %s to %s %s", src, newPath, err.Error())
	}

	cleanup := func() {
		err := os.RemoveAll(newPath)
		if err != nil {
			log.Printf("Failed to cleanup data %s", err.Error())
		}
	}

	return newPath, cleanup
}

// WriteFile overwrites name inside dir with content, failing the test on error.
func WriteFile(t *testing.T, dir, name, content string) {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %s", name, err.Error())
	}
}

// Frame builds a string dataframe from CSV-like records, the first being the header.
func Frame(t *testing.T, records [][]string) dataframe.DataFrame {
	df := dataframe.LoadRecords(records, dataframe.HasHeader(true), dataframe.DetectTypes(false),
		dataframe.NaNValues(nil))
	if df.Err != nil {
		t.Fatalf("Failed to build dataframe: %s", df.Err.Error())
	}
	return df
}

// NullLogger returns a logger that discards output along with a hook recording its entries.
func NullLogger() (logrus.FieldLogger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}
