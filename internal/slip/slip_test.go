package slip

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0x01, End, 0x02, Escape, 0x03}
	frame := Encode(payload)
	if frame[0] != End || frame[len(frame)-1] != End {
		t.Fatalf("frame missing END markers: % X", frame)
	}
	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("got % X want % X", decoded, payload)
	}
}

func TestDecodeRejectsUnframedData(t *testing.T) {
	if _, err := Decode([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error for data without END markers")
	}
}

func TestDecodeUnknownEscapePassesThrough(t *testing.T) {
	frame := []byte{End, Escape, 0x55, End}
	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, []byte{Escape}) {
		t.Fatalf("got % X, want the escape byte passed through", decoded)
	}
}

func TestFramerExtractsFrameAcrossMultipleFeeds(t *testing.T) {
	payload := []byte("a fujibus payload that spans several reads")
	frame := Encode(payload)

	var f Framer
	// Split the frame into small chunks, as a real serial read would.
	for i := 0; i < len(frame); i += 3 {
		end := i + 3
		if end > len(frame) {
			end = len(frame)
		}
		f.Feed(frame[i:end])
		if end == len(frame) {
			break
		}
		if got, ok := f.Next(); ok {
			t.Fatalf("frame completed early with only %d/%d bytes fed: % X", end, len(frame), got)
		}
	}

	got, ok := f.Next()
	if !ok {
		t.Fatal("expected a complete frame once all bytes were fed")
	}
	decoded, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("got % X want % X", decoded, payload)
	}
}

func TestFramerDiscardsLeadingJunk(t *testing.T) {
	var f Framer
	f.Feed([]byte{0xAA, 0xBB})
	f.Feed(Encode([]byte("payload")))

	got, ok := f.Next()
	if !ok {
		t.Fatal("expected a frame after leading junk")
	}
	decoded, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded, []byte("payload")) {
		t.Fatalf("got %q", decoded)
	}
}

func TestFramerHandlesBackToBackFrames(t *testing.T) {
	var f Framer
	f.Feed(Encode([]byte("first")))
	f.Feed(Encode([]byte("second")))

	first, ok := f.Next()
	if !ok {
		t.Fatal("expected first frame")
	}
	d1, _ := Decode(first)
	if !bytes.Equal(d1, []byte("first")) {
		t.Fatalf("got %q want first", d1)
	}

	second, ok := f.Next()
	if !ok {
		t.Fatal("expected second frame")
	}
	d2, _ := Decode(second)
	if !bytes.Equal(d2, []byte("second")) {
		t.Fatalf("got %q want second", d2)
	}
}

func TestFramerDropsBufferPastMaxSize(t *testing.T) {
	orig := MaxFrameBuffer
	MaxFrameBuffer = 8
	defer func() { MaxFrameBuffer = orig }()

	var f Framer
	f.Feed(bytes.Repeat([]byte{0xAA}, 20)) // no END byte anywhere, never completes
	if _, ok := f.Next(); ok {
		t.Fatal("expected no frame from junk-only input")
	}
	if len(f.rx) != 0 {
		t.Fatalf("expected oversized junk buffer to be dropped, got %d bytes", len(f.rx))
	}
}
