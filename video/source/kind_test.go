package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInfer(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(file, []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}

	for _, c := range []struct {
		raw  string
		want Kind
	}{
		{"0", KindDevice},
		{"12", KindDevice},
		{"rtsp://admin:pw@10.0.0.2:554/stream", KindRTSP},
		{"RTSP://camera/stream", KindRTSP},
		{"http://example.com/stream.m3u8", KindHLS},
		{"https://example.com/live/index.m3u8?token=x", KindHLS},
		{"https://www.youtube.com/watch?v=123", KindYouTube},
		{"images/*.jpg", KindDirectory},
		{file, KindFile},
		{"https://example.com/snapshot.jpg", KindImageURL},
	} {
		got, err := Infer(c.raw)
		if err != nil {
			t.Errorf("Infer(%q): %v", c.raw, err)
			continue
		}
		if got != c.want {
			t.Errorf("Infer(%q) = %v, want %v", c.raw, got, c.want)
		}
	}

	for _, raw := range []string{"", "invalid://stream", "-1", "no/such/file.mp4"} {
		if k, err := Infer(raw); err == nil {
			t.Errorf("Infer(%q) = %v, want error", raw, k)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range KindNames() {
		k, err := ParseKind(name)
		if err != nil {
			t.Errorf("ParseKind(%q): %v", name, err)
		}
		if k.String() != name {
			t.Errorf("round trip %q -> %v", name, k)
		}
	}
	if k, _ := ParseKind("RTSP"); k != KindRTSP {
		t.Errorf("ParseKind should be case insensitive, got %v", k)
	}
	if _, err := ParseKind("invalid"); err == nil {
		t.Error("expected error for invalid stream type")
	}
}

func TestDescribe(t *testing.T) {
	d, err := Describe("0", KindInfer)
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != KindDevice || d.Device != 0 {
		t.Errorf("got %+v", d)
	}

	// An explicit type overrides inference.
	d, err = Describe("1", KindDevice)
	if err != nil || d.Device != 1 {
		t.Errorf("got %+v, %v", d, err)
	}
	d, err = Describe("*.jpg", KindDirectory)
	if err != nil || d.Kind != KindDirectory || d.URI != "*.jpg" {
		t.Errorf("got %+v, %v", d, err)
	}

	if _, err := Describe("front-door", KindDevice); err == nil {
		t.Error("expected error for non-numeric device")
	}
}
