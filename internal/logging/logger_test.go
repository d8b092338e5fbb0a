package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(Warn, Text, &buf)
	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below threshold, got %q", buf.String())
	}
	l.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestWithAttachesFieldsToSubsequentLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(Debug, Text, &buf).With(Field{Key: "device", Value: "0xFD"})
	l.Debug("opened")
	if !strings.Contains(buf.String(), "device=0xFD") {
		t.Fatalf("expected device field in output, got %q", buf.String())
	}
}

func TestJSONFormatEmitsParsableLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(Debug, JSON, &buf)
	l.Debug("packet", Field{Key: "command", Value: 5})
	if !strings.Contains(buf.String(), `"command":5`) {
		t.Fatalf("expected json field, got %q", buf.String())
	}
}

func TestNewSessionTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewSession(Debug, Text, &buf)
	l.Debug("opened")
	if !strings.Contains(buf.String(), "component=bus") {
		t.Fatalf("expected component=bus field, got %q", buf.String())
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	if lvl, err := ParseLevel("warn"); err != nil || lvl != Warn {
		t.Fatalf("ParseLevel(warn) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("bogus"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if f, err := ParseFormat("json"); err != nil || f != JSON {
		t.Fatalf("ParseFormat(json) = %v, %v", f, err)
	}
}
