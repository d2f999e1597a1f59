package conf

/*
   This package wraps viper, a package designed to handle config files, for
   make-dataset. A value is resolved in the following order:

   1. Values set with SetEnv (tests only).
   2. The process environment.
   3. The first .env file found by walking up from the working directory.
   4. Defaults.

   Assumptions:
   1. The configuration file is an env file.
   2. The configuration file does not change during a run (exception is test).
*/

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envFileName = ".env"

// An instance of viper holding the conf information. Only made accessible
// through public functions GetEnv, SetEnv, etc.
var envVars *viper.Viper

// Path of the .env file that was loaded, empty if none was found.
var envFile string

var defaults = map[string]interface{}{
	"MAX_NUM_DRUGS":        100,
	"TREATMENT_NAME":       "HIBOR",
	"MAX_NUM_DAYS":         0,
	"MAX_NUM_ICDS":         100,
	"ICD_CODE_LENGTH":      3,
	"STATIC_CLINICAL_VARS": "weight,height",
	"STATIC_LAB_VARS":      "",
	"LAB_SOURCE":           "v2",

	"INPATIENT_RECORDS_FILE": "inpatient_records.csv",
	"DRUGS_FILE":             "drugs.csv",
	"CLINICAL_VARS_FILE":     "clinical_vars.csv",
	"LABS_FILE":              "labs.csv",
	"LABS_V2_FILE":           "labs_v2.csv",
	"CODES_EMERGENCY_FILE":   "codes_emergency.csv",
	"CODES_INPATIENT_FILE":   "codes_inpatient.csv",

	"ETL_LOG":     "",
	"LOG_LEVEL":   "info",
	"LOG_FORMAT":  "text",
	"ENVIRONMENT": "local",

	"AWS_REGION":         "us-east-1",
	"S3_ENDPOINT":        "",
	"S3_ASSUME_ROLE_ARN": "",

	"NEW_RELIC_LICENSE_KEY":                "",
	"NEW_RELIC_CONNECTION_TIMEOUT_SECONDS": 30,
}

// Config holds the typed settings for a pipeline run.
type Config struct {
	MaxNumDrugs        int      `mapstructure:"max_num_drugs"`
	TreatmentName      string   `mapstructure:"treatment_name"`
	MaxNumDays         int      `mapstructure:"max_num_days"`
	MaxNumICDs         int      `mapstructure:"max_num_icds"`
	ICDCodeLength      int      `mapstructure:"icd_code_length"`
	StaticClinicalVars []string `mapstructure:"static_clinical_vars"`
	StaticLabVars      []string `mapstructure:"static_lab_vars"`
	LabSource          string   `mapstructure:"lab_source"`

	InpatientRecordsFile string `mapstructure:"inpatient_records_file"`
	DrugsFile            string `mapstructure:"drugs_file"`
	ClinicalVarsFile     string `mapstructure:"clinical_vars_file"`
	LabsFile             string `mapstructure:"labs_file"`
	LabsV2File           string `mapstructure:"labs_v2_file"`
	CodesEmergencyFile   string `mapstructure:"codes_emergency_file"`
	CodesInpatientFile   string `mapstructure:"codes_inpatient_file"`

	AWSRegion       string `mapstructure:"aws_region"`
	S3Endpoint      string `mapstructure:"s3_endpoint"`
	S3AssumeRoleArn string `mapstructure:"s3_assume_role_arn"`
}

func init() {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	envFile = findEnv(dir)
	envVars = setup(envFile)
}

/*
   setup builds the viper instance. When file is empty only the environment and
   the defaults are consulted.
*/
func setup(file string) *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file == "" {
		return v
	}

	v.SetConfigFile(file)
	v.SetConfigType("env")
	// An unreadable .env is treated like a missing one, the environment still applies.
	_ = v.ReadInConfig()

	return v
}

/*
   findEnv walks up the directory tree starting at dir and returns the path of the
   first .env file it finds. An empty string is returned once the root is reached.
*/
func findEnv(dir string) string {
	candidate := filepath.Join(dir, envFileName)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}

	parent := filepath.Dir(dir)
	// Base case: filepath.Dir of the root is the root itself
	if parent == dir {
		return ""
	}

	return findEnv(parent)
}

// EnvFile returns the path of the .env file that was loaded, if any.
func EnvFile() string {
	return envFile
}

// GetEnv retrieves the value stored in conf. If it does not exist "" is returned.
func GetEnv(key string) string {
	return envVars.GetString(key)
}

// LookupEnv augments os.LookupEnv to look in the .env file and the defaults as well.
func LookupEnv(key string) (string, bool) {
	if !envVars.IsSet(key) {
		return "", false
	}
	return envVars.GetString(key), true
}

// SetEnv adds key values into conf. This function should only be used in testing.
// The protect parameter is there to ensure developers knowingly use it in the
// appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {
	envVars.Set(key, value)
	return nil
}

// UnsetEnv "unsets" a variable. Like SetEnv, this should only be used in testing.
func UnsetEnv(protect *testing.T, key string) error {
	envVars.Set(key, nil)
	// The environment is consulted before the .env file, so it has to go as well.
	return os.Unsetenv(key)
}

// Load decodes the current settings into a Config and validates them.
func Load() (Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(commaSeparatedHook),
	))
	if err := envVars.Unmarshal(&cfg, hook); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode configuration")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (cfg Config) validate() error {
	switch {
	case cfg.MaxNumDrugs < 0:
		return errors.Errorf("MAX_NUM_DRUGS must not be negative, got %d", cfg.MaxNumDrugs)
	case cfg.MaxNumDays < 0:
		return errors.Errorf("MAX_NUM_DAYS must not be negative, got %d", cfg.MaxNumDays)
	case cfg.MaxNumICDs < 0:
		return errors.Errorf("MAX_NUM_ICDS must not be negative, got %d", cfg.MaxNumICDs)
	case cfg.ICDCodeLength < 0:
		return errors.Errorf("ICD_CODE_LENGTH must not be negative, got %d", cfg.ICDCodeLength)
	case strings.TrimSpace(cfg.TreatmentName) == "":
		return errors.New("TREATMENT_NAME must be set")
	case cfg.LabSource != "v1" && cfg.LabSource != "v2":
		return errors.Errorf("LAB_SOURCE must be v1 or v2, got %q", cfg.LabSource)
	}
	return nil
}

// commaSeparatedHook turns "a, b,,c" into []string{"a", "b", "c"}.
func commaSeparatedHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
		return data, nil
	}

	values := []string{}
	for _, part := range strings.Split(data.(string), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values, nil
}
