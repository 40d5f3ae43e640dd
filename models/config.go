package models

type Config struct {
	Debug bool `yaml:"debug" envconfig:"EVE_DEBUG"`

	Pipeline struct {
		VcfDirPath        string `yaml:"vcf_dir_path" envconfig:"EVE_VCF_DIR_PATH"`
		Callers           string `yaml:"callers" envconfig:"EVE_CALLERS" default:"gatk,mpileup,varscan"`
		CallerProfilePath string `yaml:"caller_profile_path" envconfig:"EVE_CALLER_PROFILE_PATH"`
		TruthMode         string `yaml:"truth_mode" envconfig:"EVE_TRUTH_MODE" default:"none"`
		TruthPath         string `yaml:"truth_path" envconfig:"EVE_TRUTH_PATH"`
	} `yaml:"pipeline"`

	Encoding struct {
		Seed                         int64   `yaml:"seed" envconfig:"EVE_ENCODING_SEED"`
		TrainingFraction             float64 `yaml:"training_fraction" envconfig:"EVE_ENCODING_TRAINING_FRACTION" default:"0.8"`
		IncludeUnlabeledInEvaluation bool    `yaml:"include_unlabeled_in_evaluation" envconfig:"EVE_ENCODING_INCLUDE_UNLABELED_IN_EVALUATION"`
	} `yaml:"encoding"`

	Forest struct {
		NumTrees int   `yaml:"num_trees" envconfig:"EVE_FOREST_NUM_TREES" default:"100"`
		MaxDepth int   `yaml:"max_depth" envconfig:"EVE_FOREST_MAX_DEPTH" default:"25"`
		Seed     int64 `yaml:"seed" envconfig:"EVE_FOREST_SEED"`
	} `yaml:"forest"`

	Artifacts struct {
		DirPath string `yaml:"dir_path" envconfig:"EVE_ARTIFACTS_DIR_PATH" default:"output"`
	} `yaml:"artifacts"`
}
