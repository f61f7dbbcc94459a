package scheduler

import "github.com/alexisbeaulieu97/scenery/internal/model"

// Resolution picks the result that decides the outcome of a scenario that ran
// more than once. results is never empty.
type Resolution func(results []*model.ScenarioResult) *model.ScenarioResult

// MajorityResolution returns the last passing result when passes strictly
// outnumber failures, otherwise the last failing result. When nothing passed
// or failed (every run skipped) the last result wins.
func MajorityResolution(results []*model.ScenarioResult) *model.ScenarioResult {
	var lastPassed, lastFailed *model.ScenarioResult
	passed, failed := 0, 0
	for _, result := range results {
		switch {
		case result.IsPassed():
			passed++
			lastPassed = result
		case result.IsFailed():
			failed++
			lastFailed = result
		}
	}

	switch {
	case passed > failed:
		return lastPassed
	case lastFailed != nil:
		return lastFailed
	default:
		return results[len(results)-1]
	}
}

// LastResolution lets the most recent execution win.
func LastResolution(results []*model.ScenarioResult) *model.ScenarioResult {
	return results[len(results)-1]
}
