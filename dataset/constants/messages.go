package constants

// Progress messages logged by the pipeline
const (
	MakingDataset   = "making final data set from raw data"
	ReadingRawData  = "reading raw data"
	BuildingDrugsDF = "drugs_df"
	SplittingDrugs  = "splitting drugs df into treatment and other covariates"
	BuildingStatic  = "processing static variables"
	ProcessingLabs  = "processing labs and clinical variables"
	MergingDynamic  = "appending drug covariates to dynamic variables"
	GettingICDs     = "getting icd data"
	Saving          = "saving"
)

// Error messages
const (
	ArgCountErr       = "expected 2 arguments (INPUT_FILEPATH OUTPUT_FILEPATH), got %d"
	EmptyTreatmentErr = "treatment name must not be empty"
)
