package domain

import "time"

type Stage string

const (
	StageCollect Stage = "collect"
	StageEnrich  Stage = "enrich"
	StageResolve Stage = "resolve"
	StageAnalyze Stage = "analyze"
)

var Stages = []Stage{StageCollect, StageEnrich, StageResolve, StageAnalyze}

// Previous returns the stage whose output this stage consumes.
func (s Stage) Previous() (Stage, bool) {
	switch s {
	case StageEnrich:
		return StageCollect, true
	case StageResolve:
		return StageEnrich, true
	case StageAnalyze:
		return StageResolve, true
	default:
		return "", false
	}
}

type RunState string

const (
	RunPending    RunState = "pending"
	RunCollecting RunState = "collecting"
	RunEnriching  RunState = "enriching"
	RunResolving  RunState = "resolving"
	RunAnalyzing  RunState = "analyzing"
	RunDone       RunState = "done"
	RunFailed     RunState = "failed"
)

// RunStateFor maps a stage to the state the run is in while executing it.
func RunStateFor(stage Stage) RunState {
	switch stage {
	case StageCollect:
		return RunCollecting
	case StageEnrich:
		return RunEnriching
	case StageResolve:
		return RunResolving
	case StageAnalyze:
		return RunAnalyzing
	default:
		return RunPending
	}
}

type StageCounts struct {
	Processed int `json:"processed"`
	Partial   int `json:"partial"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type RunResult struct {
	RunID            string                `json:"run_id"`
	State            RunState              `json:"state"`
	FailedStage      Stage                 `json:"failed_stage,omitempty"`
	Error            string                `json:"error,omitempty"`
	Force            bool                  `json:"force"`
	Since            time.Time             `json:"since"`
	Stages           map[Stage]StageCounts `json:"stages"`
	CollectionErrors []string              `json:"collection_errors,omitempty"`
	VerdictsWritten  int                   `json:"verdicts_written"`
	StartedAt        time.Time             `json:"started_at"`
	FinishedAt       time.Time             `json:"finished_at"`
}

func NewRunResult(runID string, since time.Time, force bool, now time.Time) RunResult {
	stages := make(map[Stage]StageCounts, len(Stages))
	for _, s := range Stages {
		stages[s] = StageCounts{}
	}
	return RunResult{
		RunID:     runID,
		State:     RunPending,
		Force:     force,
		Since:     since,
		Stages:    stages,
		StartedAt: now,
	}
}
