package analytics

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type logFileDataCollector struct {
	log *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*logFileDataCollector, error) {
	conf := zap.NewProductionConfig()
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	conf.OutputPaths = []string{fileName}
	log, err := conf.Build()
	if err != nil {
		return nil, err
	}
	return &logFileDataCollector{log: log}, nil
}

func (c *logFileDataCollector) RecordStepSuccess(wfName string, runId string, stepName string, stepIndex int, data map[string]any) {
	c.log.Info("step success",
		zap.String("workflow", wfName),
		zap.String("runId", runId),
		zap.String("step", stepName),
		zap.Int("stepIndex", stepIndex),
		zap.Any("data", data),
	)
}

func (c *logFileDataCollector) RecordStepFailure(wfName string, runId string, stepName string, stepIndex int, reason string) {
	c.log.Info("step failure",
		zap.String("workflow", wfName),
		zap.String("runId", runId),
		zap.String("step", stepName),
		zap.Int("stepIndex", stepIndex),
		zap.String("reason", reason),
	)
}
