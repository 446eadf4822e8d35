package cli

import (
	"fmt"

	"esdwb/internal/dax"
	"esdwb/internal/workflow"
)

// LoadWorkflows reads every DAX file in order. Job runtimes become lengths at
// referenceSpeed MIPS. A file that fails to load is reported with
// ExitGraphFailure and stops the load.
func LoadWorkflows(paths []string, referenceSpeed float64) ([]*workflow.Workflow, error) {
	out := make([]*workflow.Workflow, 0, len(paths))
	for _, p := range paths {
		wf, err := dax.Load(p, referenceSpeed)
		if err != nil {
			return nil, &InvocationError{ExitCode: ExitGraphFailure, Message: fmt.Sprintf("load workflow: %v", err)}
		}
		out = append(out, wf)
	}
	return out, nil
}
