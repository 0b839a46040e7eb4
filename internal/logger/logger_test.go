package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("cache hit", "namespace", "static-v1", "url", "/style.css")

	out := buf.String()
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("expected level marker in output, got %q", out)
	}
	if !strings.Contains(out, "namespace=static-v1") {
		t.Errorf("expected namespace field in output, got %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	Info("replay complete", "queue", "writes", "replayed", 3)

	out := buf.String()
	if !strings.Contains(out, `"queue":"writes"`) {
		t.Errorf("expected queue field in JSON output, got %q", out)
	}
	if !strings.Contains(out, `"replayed":3`) {
		t.Errorf("expected replayed field in JSON output, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)

	Debug("should not appear")
	Info("should not appear either")
	Warn("visible warning")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("debug/info output leaked through WARN level: %q", out)
	}
	if !strings.Contains(out, "visible warning") {
		t.Errorf("expected warning in output, got %q", out)
	}
}

func TestSetLevelIgnoresInvalid(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	SetLevel("NOPE")
	Info("still logged at info")

	if !strings.Contains(buf.String(), "still logged at info") {
		t.Error("invalid level should not change filtering")
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	With("component", "outbox").Info("enqueued", "item_id", 1)

	out := buf.String()
	if !strings.Contains(out, "component=outbox") {
		t.Errorf("expected component field on every record, got %q", out)
	}
}
