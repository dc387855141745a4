package config

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("SHOWTIME_TEST_STR", "hello")
	if got := GetEnv("SHOWTIME_TEST_STR", "fallback"); got != "hello" {
		t.Errorf("GetEnv = %q, want hello", got)
	}
	if got := GetEnv("SHOWTIME_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv unset = %q, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("SHOWTIME_TEST_INT", "42")
	if got := GetEnvInt("SHOWTIME_TEST_INT", 7); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}
	t.Setenv("SHOWTIME_TEST_INT", "not a number")
	if got := GetEnvInt("SHOWTIME_TEST_INT", 7); got != 7 {
		t.Errorf("GetEnvInt invalid = %d, want fallback 7", got)
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("SHOWTIME_TEST_FLOAT", "2.5")
	if got := GetEnvFloat("SHOWTIME_TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("GetEnvFloat = %v, want 2.5", got)
	}
	if got := GetEnvFloat("SHOWTIME_TEST_FLOAT_UNSET", 1.5); got != 1.5 {
		t.Errorf("GetEnvFloat unset = %v, want 1.5", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("SHOWTIME_TEST_BOOL", "true")
	if !GetEnvBool("SHOWTIME_TEST_BOOL", false) {
		t.Error("GetEnvBool = false, want true")
	}
	t.Setenv("SHOWTIME_TEST_BOOL", "yes")
	if !GetEnvBool("SHOWTIME_TEST_BOOL", true) {
		t.Error("GetEnvBool invalid should use fallback true")
	}
}
