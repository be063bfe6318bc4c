package tag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/contre95/fpbridge/src/features/scanning"
)

// TagReader reads embedded tags with the dhowden/tag library.
type TagReader struct{}

// NewTagReader creates a new TagReader
func NewTagReader() *TagReader {
	return &TagReader{}
}

// parseArtists parses a string containing multiple artists separated by common delimiters
func parseArtists(artistString string) []string {
	if strings.TrimSpace(artistString) == "" {
		return nil
	}

	// Common delimiters: semicolon, slash, comma, "feat.", "ft.", "&"
	delimiters := []string{";", "/", ",", " feat. ", " ft. ", " & "}

	for _, delim := range delimiters {
		if strings.Contains(artistString, delim) {
			names := strings.Split(artistString, delim)
			artists := make([]string, 0, len(names))
			for _, name := range names {
				name = strings.TrimSpace(name)
				if name != "" {
					artists = append(artists, name)
				}
			}
			if len(artists) > 0 {
				return artists
			}
		}
	}

	return []string{strings.TrimSpace(artistString)}
}

// ReadFileTags reads the tags of filePath. Files without tags yield empty Tags.
func (r *TagReader) ReadFileTags(ctx context.Context, filePath string) (*scanning.Tags, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")

	tags, err := tag.ReadFrom(file)
	if errors.Is(err, tag.ErrNoTagsFound) {
		slog.Debug("No tags found", "path", filePath)
		return &scanning.Tags{Format: format}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	return &scanning.Tags{
		Title:   strings.TrimSpace(tags.Title()),
		Artists: parseArtists(tags.Artist()),
		Album:   strings.TrimSpace(tags.Album()),
		Year:    tags.Year(),
		Genre:   tags.Genre(),
		ISRC:    findISRC(tags),
		Format:  format,
	}, nil
}

// findISRC attempts to find ISRC in various tag fields
func findISRC(tags tag.Metadata) string {
	rawTags := tags.Raw()
	if rawTags == nil {
		return ""
	}

	isrcFields := []string{"ISRC", "isrc", "TSRC", "tsrc", "ISRC1", "isrc1"}
	for _, field := range isrcFields {
		value, ok := rawTags[field]
		if !ok {
			continue
		}
		strValue, ok := value.(string)
		if !ok {
			continue
		}
		strValue = strings.TrimSpace(strValue)
		if strValue == "" {
			continue
		}
		// Multiple ISRCs separated by "/": keep the first
		if first, _, found := strings.Cut(strValue, "/"); found && strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
		if len(strValue) > 12 {
			return strValue[:12]
		}
		return strValue
	}
	return ""
}
