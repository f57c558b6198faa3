package deputy

import "testing"

func TestParseFlagsShortAndLong(t *testing.T) {
	cfg, err := ParseFlags([]string{"-v", "-n", "host1", "-u", "redis:6379"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if !cfg.Verbose || cfg.Name != "host1" || cfg.LCMURL != "redis:6379" {
		t.Fatalf("unexpected config from short flags: %+v", cfg)
	}

	cfg2, err := ParseFlags([]string{"--verbose", "--name", "host2"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if !cfg2.Verbose || cfg2.Name != "host2" {
		t.Fatalf("unexpected config from long flags: %+v", cfg2)
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := ParseFlags(nil)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Verbose || cfg.Name != "" || cfg.LCMURL == "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestResolveHostnameUsesOverride(t *testing.T) {
	host, err := ResolveHostname(Config{Name: "override"})
	if err != nil {
		t.Fatalf("ResolveHostname: %v", err)
	}
	if host != "override" {
		t.Fatalf("expected override, got %q", host)
	}
}

func TestResolveHostnameFallsBackToSystem(t *testing.T) {
	host, err := ResolveHostname(Config{})
	if err != nil {
		t.Fatalf("ResolveHostname: %v", err)
	}
	if host == "" {
		t.Fatal("expected a non-empty system hostname")
	}
}
