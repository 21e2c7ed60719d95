package ocrlens

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// ServiceConfig configures the http daemon. It is read from an optional YAML
// file and the environment; command line flags win over both.
type ServiceConfig struct {
	HTTPPort uint `yaml:"http_port" env:"LENS_HTTP_PORT"`
	Debug    bool `yaml:"debug" env:"LENS_DEBUG"`
	// InplaceDecode runs OCR inside the daemon instead of handing requests
	// to RabbitMQ workers.
	InplaceDecode bool `yaml:"inplace_decode" env:"LENS_INPLACE_DECODE"`
	// ResManager gates /ocr on queue length and broker memory. Only useful
	// when workers are used.
	ResManager      bool          `yaml:"res_manager" env:"LENS_RES_MANAGER"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"LENS_MAX_UPLOAD_BYTES"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"LENS_REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"LENS_SHUTDOWN_TIMEOUT"`
	Rabbit          RabbitConfig  `yaml:"rabbit"`
	Redis           RedisConfig   `yaml:"redis"`
	Engine          EngineConfig  `yaml:"-" env:"-"`
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		HTTPPort:        8080,
		InplaceDecode:   true,
		MaxUploadBytes:  maxDownloadBytes,
		RequestTimeout:  5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		Rabbit:          DefaultRabbitConfig(),
		Redis:           RedisConfig{TTL: 24 * time.Hour},
		Engine:          DefaultEngineConfig(),
	}
}

type FlagFunctionService func()

func NoOpFlagFunctionService() FlagFunctionService {
	return func() {}
}

// LoadServiceConfig fills config from the YAML file at path, or from the
// environment alone when path is empty.
func LoadServiceConfig(path string, config *ServiceConfig) error {
	if path == "" {
		return errors.Wrap(cleanenv.ReadEnv(config), "read environment")
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(err, "config file")
	}
	return errors.Wrapf(cleanenv.ReadConfig(path, config), "read config %s", path)
}

func DefaultConfigFlagsServiceOverride(flagFunction FlagFunctionService) (ServiceConfig, error) {
	serviceConfig := DefaultServiceConfig()

	flagFunction()
	var (
		configPath string
		httpPort   uint
		debug      bool
		inplace    string
		redisAddr  string
	)
	flag.StringVar(
		&configPath,
		"config",
		os.Getenv("LENS_CONFIG"),
		"path of a YAML config file, environment variables are read in any case",
	)
	flag.UintVar(
		&httpPort,
		"http_port",
		0,
		"The http port to listen on, eg, 8081",
	)
	flag.BoolVar(
		&debug,
		"debug",
		false,
		"sets debug flag, program will print more messages",
	)
	flag.StringVar(
		&inplace,
		"inplace_decode",
		"",
		"true to run OCR inside the daemon, false to use RabbitMQ workers",
	)
	flag.StringVar(
		&redisAddr,
		"redis_addr",
		"",
		"address of a redis server used to cache OCR results, eg, localhost:6379",
	)
	applyRabbit := registerRabbitFlags()
	applyEngine := registerEngineFlags()
	flag.Parse()

	if err := LoadServiceConfig(configPath, &serviceConfig); err != nil {
		return serviceConfig, err
	}
	if httpPort > 0 {
		serviceConfig.HTTPPort = httpPort
	}
	if debug {
		serviceConfig.Debug = true
	}
	switch inplace {
	case "":
	case "true", "1":
		serviceConfig.InplaceDecode = true
	case "false", "0":
		serviceConfig.InplaceDecode = false
	default:
		return serviceConfig, errors.Errorf("inplace_decode: expected true or false, got %q", inplace)
	}
	if redisAddr != "" {
		serviceConfig.Redis.Addr = redisAddr
	}
	if err := applyRabbit(&serviceConfig.Rabbit); err != nil {
		return serviceConfig, err
	}
	if err := applyEngine(&serviceConfig.Engine); err != nil {
		return serviceConfig, err
	}
	return serviceConfig, nil
}
