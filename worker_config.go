package ocrlens

import (
	"flag"
)

// WorkerConfig configures the RabbitMQ OCR and preprocessor workers.
type WorkerConfig struct {
	RabbitConfig
	Engine EngineConfig
	Debug  bool
}

func DefaultWorkerConfig() WorkerConfig {

	workerConfig := WorkerConfig{
		RabbitConfig: DefaultRabbitConfig(),
		Engine:       DefaultEngineConfig(),
		Debug:        false,
	}
	return workerConfig

}

type FlagFunctionWorker func()

func NoOpFlagFunctionWorker() FlagFunctionWorker {
	return func() {}
}

func DefaultConfigFlagsWorkerOverride(flagFunction FlagFunctionWorker) (WorkerConfig, error) {
	workerConfig := DefaultWorkerConfig()

	flagFunction()
	var debug bool
	flag.BoolVar(
		&debug,
		"debug",
		false,
		"sets debug flag, program will print more messages",
	)
	applyRabbit := registerRabbitFlags()
	applyEngine := registerEngineFlags()

	flag.Parse()
	if err := applyRabbit(&workerConfig.RabbitConfig); err != nil {
		return workerConfig, err
	}
	if err := applyEngine(&workerConfig.Engine); err != nil {
		return workerConfig, err
	}
	workerConfig.Debug = debug
	return workerConfig, nil
}
