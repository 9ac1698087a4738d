package config

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, values map[string]string) {
	t.Helper()
	for k, v := range values {
		t.Setenv(k, v)
	}
}

func fullEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":          "postgres://cache",
		"FIREFLY_DATABASE_URL":  "postgres://ledger",
		"FIREFLY_BASE_PATH":     "https://firefly.example/",
		"FIREFLY_API_KEY":       "secret",
		"AKAHU_APP_TOKEN":       "app-token",
		"AKAHU_USER_TOKEN":      "user-token",
		"LOAD_AKAHU_DATA":       "true",
		"DRY_RUN":               "false",
	}
}

func TestLoadSucceedsWithAllRequiredVars(t *testing.T) {
	setEnv(t, fullEnv())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LedgerBasePath != "https://firefly.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.LedgerBasePath)
	}
	if !cfg.LoadAkahuData {
		t.Fatalf("expected LoadAkahuData true")
	}
	if cfg.DryRun {
		t.Fatalf("expected DryRun false")
	}
}

func TestLoadFailsOnMissingRequiredVar(t *testing.T) {
	env := fullEnv()
	delete(env, "FIREFLY_API_KEY")
	for k, v := range env {
		t.Setenv(k, v)
	}
	os.Unsetenv("FIREFLY_API_KEY")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected an error for missing FIREFLY_API_KEY")
	}
}

func TestIsTruthyOnlyMatchesLiteralTrue(t *testing.T) {
	cases := map[string]bool{"true": true, "True": false, "1": false, "yes": false, "": false}
	for input, want := range cases {
		if got := isTruthy(input); got != want {
			t.Fatalf("isTruthy(%q) = %v, want %v", input, got, want)
		}
	}
}
