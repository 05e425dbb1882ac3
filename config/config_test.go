package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidateRejectsForkBlockWithoutNetwork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ForkBlock = 100
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for fork-block without fork-network")
	}
}

func TestValidateFillsDefaultRestrictedMethods(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RestrictiveMode = true
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(cfg.RestrictedMethods) != len(DefaultRestrictedMethods) {
		t.Fatalf("RestrictedMethods = %v, want defaults", cfg.RestrictedMethods)
	}
}

func TestParseBlockGenerationMode(t *testing.T) {
	cases := map[string]BlockGenerationMode{
		"transaction": {OnTransaction: true},
		"demand":      {OnDemand: true},
		"5":           {IntervalSecs: 5},
	}
	for s, want := range cases {
		got, err := ParseBlockGenerationMode(s)
		if err != nil {
			t.Fatalf("ParseBlockGenerationMode(%q): %v", s, err)
		}
		if got != want {
			t.Errorf("ParseBlockGenerationMode(%q) = %+v, want %+v", s, got, want)
		}
	}
	if _, err := ParseBlockGenerationMode("bogus"); err == nil {
		t.Fatal("expected error for invalid mode")
	}
	if _, err := ParseBlockGenerationMode("0"); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestParseArchiveCapacity(t *testing.T) {
	if c, err := ParseArchiveCapacity("full"); err != nil || c != ArchiveCapacityFull {
		t.Fatalf("ParseArchiveCapacity(full) = %v, %v", c, err)
	}
	if _, err := ParseArchiveCapacity("bogus"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseRestrictedMethodsEmptyUsesDefaults(t *testing.T) {
	got := ParseRestrictedMethods("")
	if len(got) != len(DefaultRestrictedMethods) {
		t.Fatalf("got %v, want defaults", got)
	}
}

func TestParseRestrictedMethodsExplicit(t *testing.T) {
	got := ParseRestrictedMethods("devnet_mint, devnet_restart")
	if len(got) != 2 || got[0] != "devnet_mint" || got[1] != "devnet_restart" {
		t.Fatalf("got %v", got)
	}
}

func TestApplyEnvironmentOverridesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("PORT", "6060")
	t.Setenv("LITE_MODE", "true")
	ApplyEnvironment(&cfg)
	if cfg.Port != 6060 {
		t.Errorf("Port = %d, want 6060", cfg.Port)
	}
	if !cfg.LiteMode {
		t.Error("LiteMode should be true")
	}
}
