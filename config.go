package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Zelak312/blockmotion/blockmatch"
)

type Config struct {
	BindAddress                string            `yaml:"bindAddress"`
	Port                       int32             `yaml:"port"`
	DatabasePath               string            `yaml:"databasePath"`
	LogPath                    string            `yaml:"logPath"`
	LogLevel                   string            `yaml:"logLevel"`
	Workers                    int               `yaml:"workers"`
	MatchWorkers               int               `yaml:"matchWorkers"`
	Metric                     string            `yaml:"metric"`
	Estimation                 EstimationOptions `yaml:"estimation"`
	FFmpegOptions              FFmpegOptions     `yaml:"ffmpegOptions"`
	StoreVectors               *bool             `yaml:"storeVectors"`
	DeleteOutputIfAlreadyExist *bool             `yaml:"deleteOutputIfAlreadyExist"`
}

// EstimationOptions are the defaults applied to jobs that don't set their
// own matching parameters.
type EstimationOptions struct {
	BlockSize          int `yaml:"blockSize" json:"blockSize"`
	WindowSize         int `yaml:"windowSize" json:"windowSize"`
	Levels             int `yaml:"levels" json:"levels"`
	InterFrameDistance int `yaml:"interFrameDistance" json:"interFrameDistance"`
}

type FFmpegOptions struct {
	HWAccelDecodeFlag string `yaml:"HWAccelDecodeFlag"`
	Encoder           string `yaml:"encoder"`
}

// Fill zero values from defaults
func (e *EstimationOptions) withDefaults(defaults EstimationOptions) {
	if e.BlockSize == 0 {
		e.BlockSize = defaults.BlockSize
	}

	if e.WindowSize == 0 {
		e.WindowSize = defaults.WindowSize
	}

	if e.Levels == 0 {
		e.Levels = defaults.Levels
	}

	if e.InterFrameDistance == 0 {
		e.InterFrameDistance = defaults.InterFrameDistance
	}
}

func (e *EstimationOptions) validate() error {
	if e.BlockSize != 4 && e.BlockSize != 8 && e.BlockSize != 16 {
		return fmt.Errorf("block size must be 4, 8 or 16, got %d", e.BlockSize)
	}

	if e.WindowSize <= 0 {
		return fmt.Errorf("window size must be a strictly positive integer, got %d", e.WindowSize)
	}

	if e.Levels <= 0 || e.Levels > 4 {
		return fmt.Errorf("levels must be between 1 and 4, got %d", e.Levels)
	}

	if e.InterFrameDistance <= 0 {
		return fmt.Errorf("inter frame distance must be a strictly positive integer, got %d", e.InterFrameDistance)
	}

	return nil
}

// Verify config and set defaults
func verifyConfig(config *Config) error {
	if config == nil {
		return errors.New("cannot verify config, config is nil")
	}

	if config.BindAddress == "" {
		config.BindAddress = "127.0.0.1"
	}

	if config.Port == 0 {
		config.Port = 8080
	}

	if config.DatabasePath == "" {
		return errors.New("missing database path in config")
	}

	if config.LogPath == "" {
		config.LogPath = "./logs"
	}

	if config.LogLevel == "" {
		config.LogLevel = "debug"
	}

	if _, err := logrus.ParseLevel(config.LogLevel); err != nil {
		return err
	}

	if config.Workers == 0 {
		config.Workers = 1
	}

	if config.MatchWorkers == 0 {
		config.MatchWorkers = runtime.NumCPU()
	}

	if config.Metric == "" {
		config.Metric = "mse"
	}

	if _, err := blockmatch.MetricByName(config.Metric); err != nil {
		return err
	}

	config.Estimation.withDefaults(EstimationOptions{
		BlockSize:          8,
		WindowSize:         16,
		Levels:             1,
		InterFrameDistance: 1,
	})

	if err := config.Estimation.validate(); err != nil {
		return fmt.Errorf("estimation defaults: %w", err)
	}

	if config.FFmpegOptions.Encoder == "" {
		config.FFmpegOptions.Encoder = "libx264"
	}

	if config.StoreVectors == nil {
		defaultVal := true
		config.StoreVectors = &defaultVal
	}

	if config.DeleteOutputIfAlreadyExist == nil {
		defaultVal := false
		config.DeleteOutputIfAlreadyExist = &defaultVal
	}

	return nil
}

func GetConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	config := Config{}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, err
	}

	// Override with env variables if they are passed in
	err = envconfig.ProcessWithOptions("", &config, envconfig.Options{SplitWords: true})
	if err != nil {
		return Config{}, err
	}

	err = verifyConfig(&config)
	if err != nil {
		return Config{}, err
	}

	return config, nil
}
