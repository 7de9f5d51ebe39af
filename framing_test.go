package agentsup

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"testing"
)

func TestFrameWriterReaderNewlineDelimited(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf, FrameModeNewlineDelimited)

	messages := []string{`{"jsonrpc":"2.0","method":"ping","id":1}`, `{"jsonrpc":"2.0","result":{},"id":1}`}
	for _, m := range messages {
		if err := w.WriteFrame([]byte(m)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	r := NewFrameReader(&buf, FrameModeAuto)
	for _, want := range messages {
		got, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(got) != want {
			t.Fatalf("ReadFrame = %q, want %q", got, want)
		}
	}

	if _, err := r.ReadFrame(); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("ReadFrame at EOF = %v, want ErrStreamClosed", err)
	}
}

func TestFrameWriterReaderLengthPrefixed(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf, FrameModeLengthPrefixed)

	messages := []string{`{"jsonrpc":"2.0","method":"initialize","id":1}`, `{"jsonrpc":"2.0","method":"ping"}`}
	for _, m := range messages {
		if err := w.WriteFrame([]byte(m)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	r := NewFrameReader(&buf, FrameModeAuto)
	for _, want := range messages {
		got, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(got) != want {
			t.Fatalf("ReadFrame = %q, want %q", got, want)
		}
	}

	if _, err := r.ReadFrame(); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("ReadFrame at EOF = %v, want ErrStreamClosed", err)
	}
}

func TestFrameReaderTruncatedBody(t *testing.T) {
	raw := "Content-Length: 20\r\n\r\n{\"short\":true}"
	r := NewFrameReader(bytes.NewBufferString(raw), FrameModeAuto)
	if _, err := r.ReadFrame(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("ReadFrame on truncated body = %v, want a non-EOF error", err)
	}
}

func TestFrameReaderCaseInsensitiveHeader(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"ping"}`
	raw := "content-length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
	r := NewFrameReader(bytes.NewBufferString(raw), FrameModeAuto)
	got, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(got) != body {
		t.Fatalf("ReadFrame = %q, want %q", got, body)
	}
}

