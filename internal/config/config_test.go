package config

import "testing"

func validConfig() Config {
	cfg := Config{
		HTTP:       HTTPConfig{Port: 8080},
		Classifier: ClassifierConfig{Provider: "demo"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidClassifierProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Classifier.Provider = "anthropic"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid classifier provider")
	}

	expected := `classifier.provider must be "openai", "gemini" or "demo", got "anthropic"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidClassifierProviders(t *testing.T) {
	for _, provider := range []string{"openai", "gemini", "demo"} {
		t.Run("provider="+provider, func(t *testing.T) {
			cfg := validConfig()
			cfg.Classifier.Provider = provider
			cfg.Classifier.APIKey = "test-key"

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid provider %q: %v", provider, err)
			}
		})
	}
}

func TestValidate_MissingClassifierKey(t *testing.T) {
	cfg := validConfig()
	cfg.Classifier.Provider = "openai"
	cfg.Classifier.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing classifier api key")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_TopKCap(t *testing.T) {
	cfg := validConfig()
	cfg.Match.TopK = MaxTopK + 1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for top_k above the cap")
	}
}

func TestValidate_MinScoreRange(t *testing.T) {
	for _, score := range []float64{-1.5, 1.5} {
		cfg := validConfig()
		cfg.Match.MinScore = &score

		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for min_score %g outside [-1, 1]", score)
		}
	}
}

func TestValidate_InvalidQuotaStore(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.Store = "dynamodb"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid quota store")
	}
}

func TestValidate_RedisStoreRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.Store = "redis"
	cfg.Quota.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis store without addrs")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("expected WriteTimeoutSec=120, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Classifier.Provider != "demo" {
		t.Errorf("expected demo classifier, got %q", cfg.Classifier.Provider)
	}
	if cfg.Classifier.TimeoutSec != 30 {
		t.Errorf("expected TimeoutSec=30, got %d", cfg.Classifier.TimeoutSec)
	}
	if cfg.Quota.Limit != 10 {
		t.Errorf("expected quota limit 10, got %d", cfg.Quota.Limit)
	}
	if cfg.Quota.WindowSec != 3600 {
		t.Errorf("expected quota window 3600s, got %d", cfg.Quota.WindowSec)
	}
	if cfg.Quota.Store != "memory" {
		t.Errorf("expected memory store, got %q", cfg.Quota.Store)
	}
	if cfg.Match.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Match.TopK)
	}
	if cfg.Classifier.Concurrency != 5 {
		t.Errorf("expected concurrency to follow TopK, got %d", cfg.Classifier.Concurrency)
	}
	if cfg.Match.MinScore == nil || *cfg.Match.MinScore != -0.5 {
		t.Errorf("expected MinScore=-0.5, got %v", cfg.Match.MinScore)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	zeroCutoff := 0.0
	cfg := Config{
		HTTP:       HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Classifier: ClassifierConfig{Provider: "openai", TimeoutSec: 15, Concurrency: 3},
		Quota:      QuotaConfig{Limit: 100, WindowSec: 60, Store: "redis"},
		Match:      MatchConfig{TopK: 10, MinScore: &zeroCutoff},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Classifier.Concurrency != 3 {
		t.Errorf("expected Concurrency=3, got %d", cfg.Classifier.Concurrency)
	}
	if cfg.Quota.Limit != 100 {
		t.Errorf("expected quota limit 100, got %d", cfg.Quota.Limit)
	}
	if cfg.Match.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Match.TopK)
	}
	if cfg.Match.MinScore == nil || *cfg.Match.MinScore != 0 {
		t.Errorf("an explicit zero min_score must survive defaulting, got %v", cfg.Match.MinScore)
	}
}
