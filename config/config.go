// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/rating/dataset"
	"github.com/gorse-io/rating/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	BlobPOSIX = "posix"
	BlobS3    = "s3"
	BlobGCS   = "gcs"
	BlobAzure = "azure"
)

// Config is the configuration for the rating service.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Model    ModelConfig    `mapstructure:"model"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Server   ServerConfig   `mapstructure:"server"`
	Evaluate EvaluateConfig `mapstructure:"evaluate"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// DataConfig is the configuration for the rating source.
type DataConfig struct {
	Source       string  `mapstructure:"source" validate:"required"`
	Table        string  `mapstructure:"table"`
	UserColumn   string  `mapstructure:"user_column" validate:"required"`
	ItemColumn   string  `mapstructure:"item_column" validate:"required"`
	RatingColumn string  `mapstructure:"rating_column" validate:"required"`
	MinRating    float64 `mapstructure:"min_rating"`
	MaxRating    float64 `mapstructure:"max_rating" validate:"gtfield=MinRating"`
}

func (config *DataConfig) Columns() dataset.Columns {
	return dataset.Columns{
		User:   config.UserColumn,
		Item:   config.ItemColumn,
		Rating: config.RatingColumn,
	}
}

func (config *DataConfig) Scale() dataset.Scale {
	return dataset.Scale{Min: config.MinRating, Max: config.MaxRating}
}

// ModelConfig is the configuration for model training.
type ModelConfig struct {
	Name        string  `mapstructure:"name" validate:"required"`
	NFactors    int     `mapstructure:"n_factors" validate:"gte=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gte=0"`
	Lr          float64 `mapstructure:"lr" validate:"gt=0"`
	Reg         float64 `mapstructure:"reg" validate:"gte=0"`
	InitMean    float64 `mapstructure:"init_mean"`
	InitStdDev  float64 `mapstructure:"init_std" validate:"gte=0"`
	RandomState int64   `mapstructure:"random_state"`
	Verbose     int     `mapstructure:"verbose" validate:"gte=1"`
}

// Params converts the configuration to hyper-parameters.
func (config *ModelConfig) Params() model.Params {
	return model.Params{
		model.NFactors:    config.NFactors,
		model.NEpochs:     config.NEpochs,
		model.Lr:          config.Lr,
		model.Reg:         config.Reg,
		model.InitMean:    config.InitMean,
		model.InitStdDev:  config.InitStdDev,
		model.RandomState: config.RandomState,
	}
}

// BlobConfig is the configuration for model storage.
type BlobConfig struct {
	Type  string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir   string          `mapstructure:"dir"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

// ServerConfig is the configuration for the REST server.
type ServerConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	DefaultN  int           `mapstructure:"default_n" validate:"gt=0"`
	APIKey    string        `mapstructure:"api_key"`
	CacheSize  int           `mapstructure:"cache_size" validate:"gte=0"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	CacheStore string        `mapstructure:"cache_store" validate:"omitempty,startswith=redis://|startswith=rediss://"`
}

// EvaluateConfig is the configuration for cross validation.
type EvaluateConfig struct {
	NumFolds    int   `mapstructure:"n_folds" validate:"gte=2"`
	NumJobs     int   `mapstructure:"n_jobs" validate:"gte=1"`
	RandomState int64 `mapstructure:"random_state"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Source:       "ratings.csv",
			UserColumn:   "userId",
			ItemColumn:   "movieId",
			RatingColumn: "rating",
			MinRating:    1,
			MaxRating:    5,
		},
		Model: ModelConfig{
			Name:       "svd_model.bin",
			NFactors:   100,
			NEpochs:    20,
			Lr:         0.005,
			Reg:        0.02,
			InitStdDev: 0.1,
			Verbose:    1,
		},
		Blob: BlobConfig{
			Type: BlobPOSIX,
			Dir:  "models",
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8000,
			DefaultN:  10,
			CacheSize: 1024,
			CacheTTL:  time.Minute,
		},
		Evaluate: EvaluateConfig{
			NumFolds: 5,
			NumJobs:  1,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.source", defaultConfig.Data.Source)
	v.SetDefault("data.user_column", defaultConfig.Data.UserColumn)
	v.SetDefault("data.item_column", defaultConfig.Data.ItemColumn)
	v.SetDefault("data.rating_column", defaultConfig.Data.RatingColumn)
	v.SetDefault("data.min_rating", defaultConfig.Data.MinRating)
	v.SetDefault("data.max_rating", defaultConfig.Data.MaxRating)
	// [model]
	v.SetDefault("model.name", defaultConfig.Model.Name)
	v.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	v.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	v.SetDefault("model.lr", defaultConfig.Model.Lr)
	v.SetDefault("model.reg", defaultConfig.Model.Reg)
	v.SetDefault("model.init_mean", defaultConfig.Model.InitMean)
	v.SetDefault("model.init_std", defaultConfig.Model.InitStdDev)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	v.SetDefault("model.verbose", defaultConfig.Model.Verbose)
	// [blob]
	v.SetDefault("blob.type", defaultConfig.Blob.Type)
	v.SetDefault("blob.dir", defaultConfig.Blob.Dir)
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.default_n", defaultConfig.Server.DefaultN)
	v.SetDefault("server.cache_size", defaultConfig.Server.CacheSize)
	v.SetDefault("server.cache_ttl", defaultConfig.Server.CacheTTL)
	v.SetDefault("server.cache_store", defaultConfig.Server.CacheStore)
	// [evaluate]
	v.SetDefault("evaluate.n_folds", defaultConfig.Evaluate.NumFolds)
	v.SetDefault("evaluate.n_jobs", defaultConfig.Evaluate.NumJobs)
	v.SetDefault("evaluate.random_state", defaultConfig.Evaluate.RandomState)
	// [tracing]
	v.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

func bindEnv(v *viper.Viper) error {
	bindings := []configBinding{
		{"data.source", "RATING_DATA_SOURCE"},
		{"data.table", "RATING_DATA_TABLE"},
		{"model.name", "RATING_MODEL_NAME"},
		{"blob.type", "RATING_BLOB_TYPE"},
		{"blob.dir", "RATING_BLOB_DIR"},
		{"blob.s3.endpoint", "RATING_S3_ENDPOINT"},
		{"blob.s3.access_key_id", "RATING_S3_ACCESS_KEY_ID"},
		{"blob.s3.secret_access_key", "RATING_S3_SECRET_ACCESS_KEY"},
		{"blob.s3.bucket", "RATING_S3_BUCKET"},
		{"blob.gcs.bucket", "RATING_GCS_BUCKET"},
		{"blob.gcs.credentials_file", "RATING_GCS_CREDENTIALS_FILE"},
		{"blob.azure.connection_string", "RATING_AZURE_CONNECTION_STRING"},
		{"blob.azure.container", "RATING_AZURE_CONTAINER"},
		{"server.host", "RATING_SERVER_HOST"},
		{"server.port", "RATING_SERVER_PORT"},
		{"server.api_key", "RATING_SERVER_API_KEY"},
		{"server.cache_store", "RATING_CACHE_STORE"},
		{"tracing.enable_tracing", "RATING_ENABLE_TRACING"},
		{"tracing.collector_endpoint", "RATING_COLLECTOR_ENDPOINT"},
	}
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// LoadConfig loads configuration from a toml file. Environment variables take precedence over
// the file and unset keys fall back to defaults. An empty path loads defaults only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	if err := bindEnv(v); err != nil {
		return nil, errors.Trace(err)
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return unmarshal(v)
}

// LoadConfigFromString loads configuration from toml text.
func LoadConfigFromString(text string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	if err := bindEnv(v); err != nil {
		return nil, errors.Trace(err)
	}
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(text)); err != nil {
		return nil, errors.Trace(err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks field constraints and the settings required by the chosen blob store.
func (config *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	switch config.Blob.Type {
	case BlobPOSIX:
		if config.Blob.Dir == "" {
			return errors.NotValidf("blob.dir")
		}
	case BlobS3:
		if config.Blob.S3.Endpoint == "" || config.Blob.S3.Bucket == "" {
			return errors.NotValidf("blob.s3 endpoint and bucket")
		}
	case BlobGCS:
		if config.Blob.GCS.Bucket == "" {
			return errors.NotValidf("blob.gcs.bucket")
		}
	case BlobAzure:
		if config.Blob.Azure.Container == "" {
			return errors.NotValidf("blob.azure.container")
		}
	}
	return nil
}
