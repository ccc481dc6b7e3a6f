package analytics

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"

// RunDataCollector records per-step outcomes for offline analysis of
// workflow behaviour.
type RunDataCollector interface {
	RecordStepSuccess(wfName string, runId string, stepName string, stepIndex int, data map[string]any)
	RecordStepFailure(wfName string, runId string, stepName string, stepIndex int, reason string)
}

var runCollector RunDataCollector

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		runCollector = c
	}
	return nil
}

func RecordStepSuccess(wfName string, runId string, stepName string, stepIndex int, data map[string]any) {
	if runCollector == nil {
		return
	}
	runCollector.RecordStepSuccess(wfName, runId, stepName, stepIndex, data)
}

func RecordStepFailure(wfName string, runId string, stepName string, stepIndex int, reason string) {
	if runCollector == nil {
		return
	}
	runCollector.RecordStepFailure(wfName, runId, stepName, stepIndex, reason)
}
