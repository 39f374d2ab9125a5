package anki

import (
	"encoding/json"

	"github.com/mdcards/mdcards/pkg/logger"
)

// MediaMap maps an archive member's numeric name ("0", "1", ...) to the
// original filename referenced from note HTML.
type MediaMap map[string]string

// KeyFor does the reverse lookup: original filename to archive member name.
func (m MediaMap) KeyFor(original string) (string, bool) {
	for key, name := range m {
		if name == original {
			return key, true
		}
	}
	return "", false
}

// ManifestStrategy identifies which resolution step produced a media map.
type ManifestStrategy string

const (
	ManifestAbsent       ManifestStrategy = "absent"
	ManifestJSON         ManifestStrategy = "json"
	ManifestZstdJSON     ManifestStrategy = "zstd+json"
	ManifestProtobuf     ManifestStrategy = "protobuf"
	ManifestZstdProtobuf ManifestStrategy = "zstd+protobuf"
	ManifestUnavailable  ManifestStrategy = "unavailable"
)

// ResolveManifest builds the media map from the package's "media" entry.
// Strategies run in decreasing order of preference and the first success
// wins; total failure yields an empty map, not an error, because import
// can still match media by literal entry name.
func ResolveManifest(c *Container, log *logger.Logger) (MediaMap, ManifestStrategy) {
	raw, err := c.ReadEntry(MediaManifestName)
	if err != nil {
		return MediaMap{}, ManifestAbsent
	}

	if m := parseManifestJSON(raw); m != nil {
		return m, ManifestJSON
	}

	var inflated []byte
	if LooksCompressed(raw) {
		inflated, err = Decompress(raw)
		if err != nil {
			log.Debug("media manifest decompression failed: %v", err)
			inflated = nil
		}
	}
	if inflated != nil {
		if m := parseManifestJSON(inflated); m != nil {
			return m, ManifestZstdJSON
		}
	}

	if m := DecodeMediaManifest(raw); m != nil {
		return MediaMap(m), ManifestProtobuf
	}
	if inflated != nil {
		if m := DecodeMediaManifest(inflated); m != nil {
			return MediaMap(m), ManifestZstdProtobuf
		}
	}

	log.Warn("media manifest unreadable, importing without filename mapping")
	return MediaMap{}, ManifestUnavailable
}

func parseManifestJSON(data []byte) MediaMap {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	if len(m) == 0 {
		return nil
	}
	return MediaMap(m)
}
