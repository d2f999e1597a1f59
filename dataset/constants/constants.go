package constants

// App name and usage. Edit them here to prevent breaking tests
const Name = "make-dataset"
const Usage = "Turn raw clinical extracts into static, dynamic and treatment tables"

// This is set during compilation with -ldflags "-X ..."
var Version = "latest"

// Key columns shared by the raw extracts and the output tables
const (
	SubjectColumn = "patient_id"
	DayColumn     = "day"
)

// Raw extract columns
const (
	AdmissionColumn = "admission_datetime"
	DischargeColumn = "discharge_datetime"
	DatetimeColumn  = "datetime"
	DrugNameColumn  = "drug_name"
	VariableColumn  = "variable"
	TestNameColumn  = "test_name"
	ValueColumn     = "value"
	ICDCodeColumn   = "icd_code"
)

// Derived column prefixes and names
const (
	DrugPrefix     = "drug_"
	ClinicalPrefix = "clin_"
	LabPrefix      = "lab_"
	ICDPrefix      = "icd_"

	BaselineSuffix     = "_baseline"
	LengthOfStayColumn = "length_of_stay"
)

// Output file names, appended to the output prefix
const (
	DynamicVarsFile   = "dynamic_vars.csv"
	StaticVarsFile    = "static_vars.csv"
	TreatmentVarsFile = "treatment_vars.csv"
)

// Lab extract selection
const (
	LabSourceV1 = "v1"
	LabSourceV2 = "v2"
)

const S3Scheme = "s3://"
