package tuner

import (
	"runtime"
	"testing"
)

func TestDetect(t *testing.T) {
	resources, err := Detect()
	if err != nil {
		t.Fatalf("Detect() returned error: %v", err)
	}

	if resources.CPUCores != runtime.NumCPU() {
		t.Errorf("CPUCores = %d, want %d (runtime.NumCPU())", resources.CPUCores, runtime.NumCPU())
	}

	if resources.TotalRAM <= 0 {
		t.Errorf("TotalRAM = %d, want > 0", resources.TotalRAM)
	}

	if resources.AvailableRAM > resources.TotalRAM {
		t.Errorf("AvailableRAM (%d) > TotalRAM (%d), available should be <= total",
			resources.AvailableRAM, resources.TotalRAM)
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		resources SystemResources
		wantHash  int
		wantWalk  int
	}{
		{
			name:      "single core",
			resources: SystemResources{CPUCores: 1, TotalRAM: 1 << 30, AvailableRAM: 1 << 29},
			wantHash:  1,
			wantWalk:  4,
		},
		{
			name:      "zero cores reported",
			resources: SystemResources{CPUCores: 0},
			wantHash:  1,
			wantWalk:  4,
		},
		{
			name:      "medium system (8 cores, 16GB RAM)",
			resources: SystemResources{CPUCores: 8, TotalRAM: 16 << 30, AvailableRAM: 8 << 30},
			wantHash:  8,
			wantWalk:  8,
		},
		{
			name:      "huge system is capped",
			resources: SystemResources{CPUCores: 128, TotalRAM: 256 << 30, AvailableRAM: 128 << 30},
			wantHash:  64,
			wantWalk:  64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.resources)

			if got.HashWorkers != tt.wantHash {
				t.Errorf("HashWorkers = %d, want %d", got.HashWorkers, tt.wantHash)
			}
			if got.WalkWorkers != tt.wantWalk {
				t.Errorf("WalkWorkers = %d, want %d", got.WalkWorkers, tt.wantWalk)
			}
			if got.QueueSize < minQueueSize || got.QueueSize > maxQueueSize {
				t.Errorf("QueueSize = %d, want in range [%d, %d]", got.QueueSize, minQueueSize, maxQueueSize)
			}
		})
	}
}

func TestCalculateQueueSize(t *testing.T) {
	tests := []struct {
		name         string
		availableRAM int64
		want         int
	}{
		{"no memory", 0, minQueueSize},
		{"small", 1 << 20, minQueueSize},
		{"huge", 1 << 40, maxQueueSize},
		{"1GB", 1 << 30, 10485},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateQueueSize(tt.availableRAM); got != tt.want {
				t.Errorf("calculateQueueSize(%d) = %d, want %d", tt.availableRAM, got, tt.want)
			}
		})
	}
}

func TestCalculateWithOverrides(t *testing.T) {
	resources := SystemResources{CPUCores: 8, TotalRAM: 16 << 30, AvailableRAM: 8 << 30}

	cfg := CalculateWithOverrides(resources, 3, 10)
	if cfg.HashWorkers != 3 {
		t.Errorf("HashWorkers = %d, want 3", cfg.HashWorkers)
	}
	if cfg.QueueSize != 10 {
		t.Errorf("QueueSize = %d, want 10", cfg.QueueSize)
	}

	cfg = CalculateWithOverrides(resources, 1000, 0)
	if cfg.HashWorkers != maxWorkers {
		t.Errorf("HashWorkers = %d, want %d (capped)", cfg.HashWorkers, maxWorkers)
	}

	cfg = CalculateWithOverrides(resources, 0, 0)
	if cfg != Calculate(resources) {
		t.Errorf("zero overrides changed config: %+v", cfg)
	}
}

func TestAuto(t *testing.T) {
	cfg := Auto(2, 0)
	if cfg.HashWorkers != 2 {
		t.Errorf("HashWorkers = %d, want 2", cfg.HashWorkers)
	}
	if cfg.QueueSize < minQueueSize {
		t.Errorf("QueueSize = %d, want >= %d", cfg.QueueSize, minQueueSize)
	}
}
