package reservation

import (
	"fmt"
	"slices"
)

// Stage is a step of a single commit attempt. Stages are never persisted.
type Stage string

const (
	StageReceived           Stage = "received"
	StageValidated          Stage = "validated"
	StageResourcesChecked   Stage = "resources_checked"
	StageScopeChecked       Stage = "scope_checked"
	StageConflictChecked    Stage = "conflict_checked"
	StageEquipmentAllocated Stage = "equipment_allocated"
	StagePersisted          Stage = "persisted"
	StageFailed             Stage = "failed"
)

var stageTransitions = map[Stage][]Stage{
	StageReceived:           {StageValidated, StageFailed},
	StageValidated:          {StageResourcesChecked, StageFailed},
	StageResourcesChecked:   {StageScopeChecked, StageFailed},
	StageScopeChecked:       {StageConflictChecked, StageFailed},
	StageConflictChecked:    {StageEquipmentAllocated, StageFailed},
	StageEquipmentAllocated: {StagePersisted, StageFailed},
}

// canAdvance checks if the transition is allowed.
func canAdvance(from, to Stage) bool {
	return slices.Contains(stageTransitions[from], to)
}

// attempt tracks the progress of one commit.
type attempt struct {
	stage Stage
}

func newAttempt() *attempt {
	return &attempt{stage: StageReceived}
}

func (a *attempt) advance(to Stage) error {
	if !canAdvance(a.stage, to) {
		return fmt.Errorf("illegal commit stage transition %s -> %s", a.stage, to)
	}
	a.stage = to
	return nil
}

// fail moves to StageFailed and returns the stage that was reached.
func (a *attempt) fail() Stage {
	reached := a.stage
	if canAdvance(a.stage, StageFailed) {
		a.stage = StageFailed
	}
	return reached
}
