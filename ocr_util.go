package ocrlens

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

const maxDownloadBytes = 50 << 20

func saveBytesToFileName(data []byte, tmpFileName string) error {
	return os.WriteFile(tmpFileName, data, 0600)
}

func url2bytes(url string) ([]byte, error) {

	var client = &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))

}

// createTempFileName generating a file name within of a temp directory. If function argument ist empty string
// file name will be generated in ksuid format.
func createTempFileName(fileName string) string {
	if fileName == "" {
		fileName = ksuid.New().String()
	}
	return filepath.Join(os.TempDir(), fileName)
}

func removeTempFile(name string, saveFiles bool) {
	if saveFiles {
		return
	}
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("component", "OCR_UTIL").Msg(name + " could not be removed")
	}
}

// detect uploaded file type
func detectFileType(buffer []byte) string {
	fileType := "UNKNOWN"
	switch {
	case bytes.HasPrefix(buffer, []byte("%PDF")):
		fileType = "PDF"
	case bytes.HasPrefix(buffer, []byte{0x49, 0x49, 0x2A, 0x00}),
		bytes.HasPrefix(buffer, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		fileType = "TIFF"
	case bytes.HasPrefix(buffer, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		fileType = "PNG"
	case bytes.HasPrefix(buffer, []byte{0xFF, 0xD8, 0xFF}):
		fileType = "JPEG"
	}
	log.Debug().Str("component", "OCR_DETECTFILETYPE").Str("file_type", fileType).Msg("detected upload type")
	return fileType
}

// contentKey derives a stable cache key from an image and the settings that
// influence its OCR result.
func contentKey(img []byte, parts ...string) string {
	h := sha256.New()
	h.Write(img)
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// timeTrack used to measure time of selected operations
func timeTrack(start time.Time, operation string, message string, requestID string) {
	elapsed := time.Since(start)
	event := log.Info().Str("component", "OCR_TIMING").Dur(operation, elapsed)
	if requestID != "" {
		event = event.Str("RequestID", requestID)
	}
	event.Msg(message)
}

// StripPasswordFromUrl strips passwords from URL
func StripPasswordFromUrl(rawURL string) string {
	at := strings.LastIndex(rawURL, "@")
	scheme := strings.Index(rawURL, "://")
	if at < 0 || scheme < 0 {
		return rawURL
	}
	userInfo := rawURL[scheme+3 : at]
	colon := strings.Index(userInfo, ":")
	if colon < 0 {
		return rawURL
	}
	return rawURL[:scheme+3] + userInfo[:colon] + ":***" + rawURL[at:]
}
