package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// stampName records the fingerprint of the inputs that produced the output
// directory's contents.
const stampName = ".bookforge-stamp"

// Fingerprint hashes everything a build depends on at this layer: target
// format, effective source, publication file, and stringparams in sorted
// order. Matching fingerprints mean the engine would reproduce the same
// artifacts.
func Fingerprint(format string, effective, publication []byte, params map[string]string) string {
	h := sha256.New()
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write(effective)
	h.Write([]byte{0})
	h.Write(publication)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k + "=" + params[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ReadStamp returns the recorded fingerprint for outputDir, or empty when
// none exists.
func ReadStamp(outputDir string) string {
	data, err := os.ReadFile(filepath.Join(outputDir, stampName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// WriteStamp records fp inside outputDir.
func WriteStamp(outputDir, fp string) error {
	return os.WriteFile(filepath.Join(outputDir, stampName), []byte(fp+"\n"), 0o644)
}
