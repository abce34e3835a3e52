// Copyright 2025 James Ross
package pipeline

// dependencyTable is the static step-input resolver from spec.md §4.4:
// each step receives only the named upstream results, never the whole
// result map.
var dependencyTable = map[string][]string{
	"TTS":          {},
	"Subtitle":     {"TTS"},
	"Split":        {"TTS"},
	"Image":        {"Split"},
	"Video":        {"Image", "TTS"},
	"DigitalHuman": {"Video", "TTS"},
	"PostProcess":  {"DigitalHuman", "Video", "TTS", "Subtitle"},
	"Upload":       {"PostProcess", "Image", "TTS", "Subtitle"},
}

// resolveInputs builds a step's StepInputs from whatever of its declared
// dependencies have already produced a result. A dependency that was
// skipped (conditional step) or hasn't run yet is simply absent — steps
// that tolerate a missing upstream (PostProcess reading DigitalHuman) check
// with Result's ok return.
func resolveInputs(stepName string, rm *ResultManager) StepInputs {
	deps := dependencyTable[stepName]
	m := make(map[string]StepResult, len(deps))
	for _, d := range deps {
		if r, ok := rm.Get(d); ok {
			m[d] = r
		}
	}
	return StepInputs{deps: m}
}
