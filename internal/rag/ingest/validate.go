package ingest

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ragcore/internal/rag/docproc"
	"ragcore/internal/ragerr"
)

// hardSizeCapBytes is the absolute ceiling regardless of configuration (§6).
const hardSizeCapBytes = 100 * 1024 * 1024

// disallowedExtensions flags names that smuggle an executable extension
// ahead of an allowed one (e.g. "invoice.exe.txt"), per the "potentially
// malicious" heuristic in §4.7 step 3.
var disallowedExtensions = map[string]bool{
	".exe": true, ".sh": true, ".bat": true, ".cmd": true, ".com": true,
	".scr": true, ".js": true, ".vbs": true, ".ps1": true, ".jar": true,
	".php": true, ".py": true, ".dll": true,
}

// validationResult carries non-fatal warnings alongside a pass/fail verdict.
type validationResult struct {
	Warnings []string
}

// validate applies §4.7 step 3 / §6's synchronous checks: extension
// allow-list, the 100MB hard cap, maxFileSize soft cap, and the
// double-extension "potentially malicious" heuristic. It returns a
// *ragerr.Error on rejection.
func validate(filename string, data []byte, maxFileSize int64) (validationResult, error) {
	var res validationResult

	size := int64(len(data))
	if size > hardSizeCapBytes {
		return res, ragerr.New("ingest.validate", ragerr.InvalidInput)
	}
	if maxFileSize > 0 && size > maxFileSize {
		return res, ragerr.New("ingest.validate", ragerr.InvalidInput)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !docproc.SupportedExtensions[ext] {
		return res, ragerr.New("ingest.validate", ragerr.UnsupportedFormat)
	}

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if innerExt := strings.ToLower(filepath.Ext(base)); innerExt != "" && disallowedExtensions[innerExt] {
		return res, ragerr.New("ingest.validate", ragerr.InvalidInput)
	}

	if mismatch := mimeMismatch(ext, data); mismatch != "" {
		res.Warnings = append(res.Warnings, mismatch)
	}
	return res, nil
}

// mimeMismatch sniffs data's content type and compares it against what ext
// implies; a mismatch is a warning only, never a rejection (§6).
func mimeMismatch(ext string, data []byte) string {
	detected := http.DetectContentType(data)
	switch ext {
	case ".txt", ".md", ".csv":
		if !strings.HasPrefix(detected, "text/") && detected != "application/octet-stream" {
			return "detected MIME type " + detected + " does not match extension " + ext
		}
	}
	return ""
}

// uniquifyPath resolves collisions in dir by appending _1, _2, ... before
// the extension, per §6's persisted filename policy.
func uniquifyPath(dir, filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	candidate := filepath.Join(dir, filename)
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = filepath.Join(dir, base+"_"+strconv.Itoa(i)+ext)
	}
}
