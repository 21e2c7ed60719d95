package ocrlens

import (
	"flag"
	"os"
	"os/exec"
	"runtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EngineConfig is resolved once at startup and handed to every engine call.
type EngineConfig struct {
	// TesseractPath is the tesseract binary used by the exec engine.
	TesseractPath string
	// SaveFiles keeps temporary files for debugging.
	SaveFiles bool
	// PageWorkers bounds how many PDF pages are recognised concurrently.
	PageWorkers int
	Pipeline    *Pipeline
}

func DefaultEngineConfig() EngineConfig {

	engineConfig := EngineConfig{
		TesseractPath: "tesseract",
		SaveFiles:     false,
		PageWorkers:   runtime.NumCPU(),
		Pipeline:      NewPipeline(),
	}
	return engineConfig

}

// tesseractCandidates lists the usual install locations per platform.
var tesseractCandidates = map[string][]string{
	"linux":  {"/usr/bin/tesseract", "/usr/local/bin/tesseract"},
	"darwin": {"/opt/homebrew/bin/tesseract", "/usr/local/bin/tesseract"},
	"windows": {
		`C:\Program Files\Tesseract-OCR\tesseract.exe`,
		`C:\Program Files (x86)\Tesseract-OCR\tesseract.exe`,
	},
}

// ResolveTesseractPath finds the tesseract binary: an explicitly configured
// path wins, then the platform's usual locations, then $PATH.
func ResolveTesseractPath(configured string) (string, error) {
	return resolveTesseractPath(configured, tesseractCandidates[runtime.GOOS])
}

func resolveTesseractPath(configured string, candidates []string) (string, error) {
	if configured != "" {
		if isExecutable(configured) {
			return configured, nil
		}
		if p, err := exec.LookPath(configured); err == nil {
			return p, nil
		}
		return "", errors.Wrapf(ErrNoTesseract, "configured path %q", configured)
	}
	for _, candidate := range candidates {
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	if p, err := exec.LookPath("tesseract"); err == nil {
		return p, nil
	}
	return "", errors.Wrapf(ErrNoTesseract, "searched %v and $PATH", candidates)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode()&0111 != 0
}

// TesseractVersion returns the first line printed by `tesseract --version`.
func TesseractVersion(path string) (string, error) {
	out, err := exec.Command(path, "--version").CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "%s --version", path)
	}
	for i, b := range out {
		if b == '\n' {
			return string(out[:i]), nil
		}
	}
	return string(out), nil
}

type FlagFunctionEngine func()

func NoOpFlagFunctionEngine() FlagFunctionEngine {
	return func() {}
}

// registerEngineFlags adds the engine flags to the default flag set and
// returns a function applying them once flag.Parse has run.
func registerEngineFlags() func(*EngineConfig) error {
	var (
		tesseractPath string
		saveFiles     bool
		pageWorkers   int
		skewEstimator string
	)
	flag.StringVar(
		&tesseractPath,
		"tesseract_path",
		"",
		"path of the tesseract binary, searched in the usual install locations if empty",
	)
	flag.BoolVar(
		&saveFiles,
		"save_files",
		false,
		"if set there will be no clean up of temporary files",
	)
	flag.IntVar(
		&pageWorkers,
		"page_workers",
		runtime.NumCPU(),
		"number of PDF pages recognised in parallel",
	)
	flag.StringVar(
		&skewEstimator,
		"skew_estimator",
		"min-area-rect",
		"deskew angle estimator, min-area-rect or white-lines",
	)

	return func(engineConfig *EngineConfig) error {
		path, err := ResolveTesseractPath(tesseractPath)
		if err != nil {
			log.Warn().Err(err).Str("component", "OCR_CONFIG").
				Msg("tesseract exec engine will not be usable")
		} else {
			engineConfig.TesseractPath = path
		}
		engineConfig.SaveFiles = saveFiles
		if pageWorkers > 0 {
			engineConfig.PageWorkers = pageWorkers
		}
		estimator, err := ParseSkewEstimator(skewEstimator)
		if err != nil {
			return err
		}
		engineConfig.Pipeline.Deskewer.Estimator = estimator
		return nil
	}
}

func DefaultConfigFlagsEngineOverride(flagFunction FlagFunctionEngine) (EngineConfig, error) {
	engineConfig := DefaultEngineConfig()

	flagFunction()
	apply := registerEngineFlags()
	flag.Parse()

	err := apply(&engineConfig)
	return engineConfig, err
}
