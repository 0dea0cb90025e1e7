package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Basic cases
		{"MyBoard", "myboard"},
		{"my_board", "my_board"},
		{"my-board", "my_board"},

		// Spaces
		{"My Second Brain", "my_second_brain"},
		{"Notes  and   Things", "notes_and_things"},

		// Special characters
		{"My Board (2024)", "my_board_2024"},
		{"Notes & Ideas", "notes_ideas"},
		{"Board@Home!", "boardhome"},

		// Unicode
		{"My Café Notes", "my_caf_notes"},
		{"日本語Board", "board"},

		// Starts with number
		{"2024 Notes", "board_2024_notes"},
		{"123", "board_123"},

		// Edge cases
		{"", "board"},
		{"___", "board"},
		{"---", "board"},
		{"   ", "board"},

		// Leading/trailing cleanup
		{"_board_", "board"},
		{"-board-", "board"},
		{" board ", "board"},

		// Multiple underscores/hyphens
		{"my--board", "my_board"},
		{"my__board", "my_board"},
		{"my - board", "my_board"},

		// Long names (63 char limit)
		{
			"ThisIsAReallyLongBoardNameThatExceedsThePostgreSQLIdentifierLimitOfSixtyThreeCharacters",
			"thisisareallylongboardnamethatexceedsthepostgresqlidentifierlim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := SanitizeIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeIdentifier_MaxLength(t *testing.T) {
	// Test that result never exceeds 63 characters
	longName := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"

	result := SanitizeIdentifier(longName)
	if len(result) > 63 {
		t.Errorf("result length %d exceeds 63: %q", len(result), result)
	}
}

func TestSanitizeIdentifier_ValidIdentifier(t *testing.T) {
	// Test that result is always a valid PostgreSQL identifier
	testCases := []string{
		"My Board",
		"123",
		"",
		"___test___",
		"valid_name",
		"UPPERCASE",
	}

	for _, tc := range testCases {
		result := SanitizeIdentifier(tc)

		// Must not be empty
		if result == "" {
			t.Errorf("SanitizeIdentifier(%q) returned empty string", tc)
			continue
		}

		// Must start with letter
		if result[0] < 'a' || result[0] > 'z' {
			if result[0] != '_' {
				t.Errorf("SanitizeIdentifier(%q) = %q, doesn't start with letter", tc, result)
			}
		}

		// Must only contain valid characters
		for _, c := range result {
			if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
				t.Errorf("SanitizeIdentifier(%q) = %q, contains invalid character %q", tc, result, c)
			}
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
name: Garden Board
database:
  host: localhost
  user: board
  password: ${ROOMBOARD_TEST_PASSWORD}
  database: boards
`

func TestLoad_DefaultsAndDerivedSchema(t *testing.T) {
	t.Setenv("ROOMBOARD_TEST_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Password != "s3cret" {
		t.Errorf("password = %q, want expanded env value", cfg.Database.Password)
	}
	if cfg.Database.Schema != "garden_board" {
		t.Errorf("schema = %q, want garden_board", cfg.Database.Schema)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Canvas.Layout.Columns != 4 || cfg.Canvas.Layout.ColumnWidth != 280 {
		t.Errorf("layout = %+v, want 4 columns of 280", cfg.Canvas.Layout)
	}
	if cfg.Sync.Debounce() != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Sync.Debounce())
	}
	if len(cfg.Inbox.IgnorePatterns) == 0 {
		t.Error("expected default ignore patterns")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ROOMBOARD_TEST_PASSWORD", "x")
	t.Setenv("ROOMBOARD_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("ROOMBOARD_SYNC_DEBOUNCE_MS", "25")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Sync.DebounceMs != 25 {
		t.Errorf("debounce_ms = %d", cfg.Sync.DebounceMs)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing database host", `
database:
  user: u
  password: p
  database: d
`},
		{"inbox path is not a directory", minimalConfig + `
inbox:
  path: /definitely/not/here
`},
		{"inverted zoom bounds", minimalConfig + `
canvas:
  viewport:
    min_scale: 2
    max_scale: 1
`},
		{"zero column width", minimalConfig + `
canvas:
  layout:
    column_width: 0
`},
	}

	t.Setenv("ROOMBOARD_TEST_PASSWORD", "x")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCanvasConfig_SessionOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Canvas.Viewport.Width = 800
	cfg.Canvas.Layout.Columns = 0

	opts := cfg.Canvas.SessionOptions()
	if opts.Screen.W != 800 || opts.Screen.H != 900 {
		t.Errorf("screen = %+v", opts.Screen)
	}
	if opts.Limits.Base != 0.65 || opts.Limits.Max != 5 {
		t.Errorf("limits = %+v", opts.Limits)
	}
	if opts.Layout.Columns != 0 || opts.Layout.HGap != 40 {
		t.Errorf("layout = %+v", opts.Layout)
	}
	if opts.RoomScale != 1 || opts.HomeScale != 0.65 {
		t.Errorf("scales = %v/%v", opts.RoomScale, opts.HomeScale)
	}
	if !opts.KeepInView {
		t.Error("expected layouts to be kept in view by default")
	}
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "boards", Schema: "garden"}
	want := "postgres://u:p@db:5433/boards?sslmode=require&search_path=garden,public"
	if got := d.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
