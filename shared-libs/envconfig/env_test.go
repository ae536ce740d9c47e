package envconfig

import (
	"testing"
	"time"
)

func TestGetFallsBackWhenEmpty(t *testing.T) {
	t.Setenv("AURA_TEST_VALUE", "")
	if got := Get("AURA_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("AURA_TEST_VALUE", "set")
	if got := Get("AURA_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestGetIntAndDuration(t *testing.T) {
	t.Setenv("AURA_TEST_INT", " 12 ")
	n, err := GetInt("AURA_TEST_INT", 3)
	if err != nil || n != 12 {
		t.Fatalf("GetInt = %d, %v", n, err)
	}

	t.Setenv("AURA_TEST_INT", "twelve")
	if _, err := GetInt("AURA_TEST_INT", 3); err == nil {
		t.Fatal("expected parse error")
	}

	t.Setenv("AURA_TEST_DURATION", "")
	d, err := GetDuration("AURA_TEST_DURATION", 2*time.Second)
	if err != nil || d != 2*time.Second {
		t.Fatalf("GetDuration = %v, %v", d, err)
	}
}

func TestGetListDropsBlanks(t *testing.T) {
	t.Setenv("AURA_TEST_LIST", "kafka-1:9092, ,kafka-2:9092,")
	got := GetList("AURA_TEST_LIST")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected list: %v", got)
	}
}

func TestGetBool(t *testing.T) {
	t.Setenv("AURA_TEST_BOOL", "false")
	v, err := GetBool("AURA_TEST_BOOL", true)
	if err != nil || v {
		t.Fatalf("GetBool = %v, %v", v, err)
	}

	t.Setenv("AURA_TEST_BOOL", "perhaps")
	if _, err := GetBool("AURA_TEST_BOOL", true); err == nil {
		t.Fatal("expected parse error")
	}
}
