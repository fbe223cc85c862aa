package types

// CalculateStatus derives the remote item status of a finished attempt from the
// test outcome and the attempt result
func CalculateStatus(outcome Outcome, status ResultStatus) ItemStatus {
	switch outcome {
	case OutcomeExpected:
		if status == ResultStatusSkipped {
			return StatusSkipped
		}
		return StatusPassed
	case OutcomeFlaky:
		return StatusPassed
	case OutcomeSkipped:
		return StatusSkipped
	case OutcomeUnexpected:
		if status == ResultStatusInterrupted {
			return StatusInterrupted
		}
		return StatusFailed
	default:
		return StatusFailed
	}
}

// ForcedStepStatus is the status given to steps still open when their test ends.
// The test level result overrides whatever the step recorded itself.
func ForcedStepStatus(status ResultStatus) ItemStatus {
	if status == ResultStatusTimedOut {
		return StatusInterrupted
	}
	return StatusFailed
}
