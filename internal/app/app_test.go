package app_test

import (
	"context"
	"testing"

	"github.com/p-n-ai/pai-progress/internal/app"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/tracker"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Store.Backend = config.BackendMemory
	cfg.CatalogPath = "../../content"
	return cfg
}

func TestNew_Memory(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, memoryConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if err := a.Ready(ctx); err != nil {
		t.Errorf("Ready() error = %v", err)
	}

	res, err := a.Tracker.Submit(ctx, tracker.Submission{
		StudentID: "s1",
		Year:      1,
		ModuleID:  "1ro_modulo_1",
		Answers:   map[int]int{1: 1, 2: 1, 3: 1, 4: 1, 5: 0},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Attempt.Percentage != 80 || !res.Attempt.Approved {
		t.Errorf("Attempt = %+v", res.Attempt)
	}

	view, err := a.Dashboard.Dashboard(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if view.Stats.Completed != 1 || view.Stats.Total != 6 {
		t.Errorf("Stats = %+v", view.Stats)
	}
	if len(view.NextUp) == 0 || view.NextUp[0].ModuleID != "1ro_modulo_2" {
		t.Errorf("NextUp = %+v", view.NextUp)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"invalid config", func(c *config.Config) { c.Policy.Retake = "sometimes" }},
		{"missing catalog", func(c *config.Config) { c.CatalogPath = t.TempDir() + "/nope" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig(t)
			tt.modify(cfg)
			if _, err := app.New(context.Background(), cfg); err == nil {
				t.Fatal("New() should fail")
			}
		})
	}
}
