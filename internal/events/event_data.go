package events

// EventData is the interface that all typed event payloads implement.
// Emitters may use EmitTyped with one of these instead of building the
// data map by hand.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// StrategyRegisteredData contains data for StrategyRegistered events
type StrategyRegisteredData struct {
	StrategyID  string `json:"strategy_id"`
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name"`
}

// EventType returns the event type for StrategyRegisteredData
func (d *StrategyRegisteredData) EventType() EventType {
	return StrategyRegistered
}

// StrategyEvaluatedData contains data for StrategyEvaluated events
type StrategyEvaluatedData struct {
	StrategyID string   `json:"strategy_id"`
	RunID      string   `json:"run_id"`
	Score      *float64 `json:"score,omitempty"`
	Status     string   `json:"status"`
}

// EventType returns the event type for StrategyEvaluatedData
func (d *StrategyEvaluatedData) EventType() EventType {
	return StrategyEvaluated
}

// StrategyStatusChangedData contains data for StrategyStatusChanged events
type StrategyStatusChangedData struct {
	StrategyID string `json:"strategy_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Reason     string `json:"reason,omitempty"`
}

// EventType returns the event type for StrategyStatusChangedData
func (d *StrategyStatusChangedData) EventType() EventType {
	return StrategyStatusChanged
}

// MutationSpawnedData contains data for MutationSpawned events
type MutationSpawnedData struct {
	ParentID          string   `json:"parent_id"`
	ParentFingerprint string   `json:"parent_fingerprint"`
	ChildIDs          []string `json:"child_ids"`
	Kinds             []string `json:"kinds"`
}

// EventType returns the event type for MutationSpawnedData
func (d *MutationSpawnedData) EventType() EventType {
	return MutationSpawned
}

// BacktestCompletedData contains data for BacktestCompleted events
type BacktestCompletedData struct {
	StrategyID string   `json:"strategy_id"`
	RunID      string   `json:"run_id"`
	WindowHash string   `json:"window_hash"`
	DurationMs int64    `json:"duration_ms"`
	TestSharpe *float64 `json:"test_sharpe,omitempty"`
}

// EventType returns the event type for BacktestCompletedData
func (d *BacktestCompletedData) EventType() EventType {
	return BacktestCompleted
}

// BacktestFailedData contains data for BacktestFailed events
type BacktestFailedData struct {
	StrategyID string `json:"strategy_id"`
	Kind       string `json:"kind"`
	Error      string `json:"error"`
}

// EventType returns the event type for BacktestFailedData
func (d *BacktestFailedData) EventType() EventType {
	return BacktestFailed
}

// EvolutionTickCompletedData contains data for EvolutionTickCompleted events
type EvolutionTickCompletedData struct {
	Selected   int   `json:"selected"`
	Completed  int   `json:"completed"`
	Promoted   int   `json:"promoted"`
	Discarded  int   `json:"discarded"`
	Mutations  int   `json:"mutations"`
	DurationMs int64 `json:"duration_ms"`
}

// EventType returns the event type for EvolutionTickCompletedData
func (d *EvolutionTickCompletedData) EventType() EventType {
	return EvolutionTickCompleted
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
