package core

import (
	"errors"
	"testing"
)

func TestApplyProcessorOptions(t *testing.T) {
	cfg := ApplyProcessorOptions(WithSampleRate(44100), WithBlockSize(128), nil)
	if cfg.SampleRate != 44100 || cfg.BlockSize != 128 {
		t.Fatalf("cfg = %+v, want 44100/128", cfg)
	}

	cfg = ApplyProcessorOptions(WithSampleRate(-1), WithBlockSize(0))
	if cfg != DefaultProcessorConfig() {
		t.Fatalf("invalid options must be ignored, got %+v", cfg)
	}
}

func TestProcessorConfigValidate(t *testing.T) {
	if err := DefaultProcessorConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	err := ProcessorConfig{SampleRate: 0, BlockSize: 64}.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
	}

	err = ProcessorConfig{SampleRate: 48000}.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
	}
}
