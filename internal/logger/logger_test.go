package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		l, err := NewLogger(env, "")
		if err != nil {
			t.Fatalf("%s: %v", env, err)
		}
		if l == nil {
			t.Fatalf("%s: nil logger", env)
		}
	}
}

func TestNewLogger_UnknownEnv(t *testing.T) {
	if _, err := NewLogger("staging", ""); err == nil {
		t.Fatal("expected error for unknown env")
	}
}

func TestNewLogger_EnvDefaults(t *testing.T) {
	l, err := NewLogger("test", "")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("test env should log warn and above")
	}

	cfg, err := configFor("prod")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sampling != nil {
		t.Error("prod must not sample request events")
	}
	if cfg.InitialFields["service"] != ServiceName {
		t.Errorf("service field = %v", cfg.InitialFields["service"])
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn")
	}
	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}
	l := zap.NewExample()
	if got := FromContext(ContextWithLogger(context.Background(), l)); got != l {
		t.Error("logger not returned from context")
	}
}

func TestWith(t *testing.T) {
	bare := context.Background()
	if With(bare, zap.String("k", "v")) != bare {
		t.Error("context without logger should be returned unchanged")
	}

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := With(ContextWithLogger(bare, zap.New(core)), zap.String("topic_root", "9709.p1"))
	FromContext(ctx).Info("searched")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["topic_root"]; got != "9709.p1" {
		t.Errorf("topic_root = %v", got)
	}
}
