package tag

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// id3v23 builds a minimal ID3v2.3 tag holding the given text frames.
func id3v23(frames map[string]string) []byte {
	var body bytes.Buffer
	for _, id := range []string{"TIT2", "TPE1", "TALB", "TSRC"} {
		text, ok := frames[id]
		if !ok {
			continue
		}
		data := append([]byte{0x00}, text...)
		body.WriteString(id)
		binary.Write(&body, binary.BigEndian, uint32(len(data)))
		body.Write([]byte{0x00, 0x00})
		body.Write(data)
	}

	size := body.Len()
	header := []byte{'I', 'D', '3', 3, 0, 0,
		byte(size >> 21 & 0x7f), byte(size >> 14 & 0x7f), byte(size >> 7 & 0x7f), byte(size & 0x7f)}
	return append(header, body.Bytes()...)
}

func TestReadFileTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	data := id3v23(map[string]string{
		"TIT2": "Song",
		"TPE1": "Band; Guest",
		"TALB": "Album",
		"TSRC": "USRC17607839",
	})
	data = append(data, bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 64)...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	tags, err := NewTagReader().ReadFileTags(context.Background(), path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tags.Title != "Song" || tags.Album != "Album" || tags.Format != "mp3" {
		t.Errorf("unexpected tags %+v", tags)
	}
	if !reflect.DeepEqual(tags.Artists, []string{"Band", "Guest"}) {
		t.Errorf("unexpected artists %v", tags.Artists)
	}
}

func TestReadFileTags_NoTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.wav")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x01}, 128), 0644); err != nil {
		t.Fatal(err)
	}
	tags, err := NewTagReader().ReadFileTags(context.Background(), path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tags.Title != "" || tags.Format != "wav" {
		t.Errorf("expected empty tags, got %+v", tags)
	}
}

func TestReadFileTags_Missing(t *testing.T) {
	if _, err := NewTagReader().ReadFileTags(context.Background(), "/does/not/exist.mp3"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseArtists(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"Solo", []string{"Solo"}},
		{"A / B", []string{"A", "B"}},
		{"A feat. B", []string{"A", "B"}},
		{"A & B", []string{"A", "B"}},
	}
	for _, tt := range tests {
		if got := parseArtists(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseArtists(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
