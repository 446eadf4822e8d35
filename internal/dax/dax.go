// Package dax reads Pegasus DAX workflow descriptions.
//
// Only the parts the scheduler needs are decoded: jobs with their runtime and
// input files, and child/parent dependencies. Lengths are runtimes scaled by a
// reference processing speed.
package dax

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"esdwb/internal/workflow"
)

type document struct {
	XMLName  xml.Name `xml:"adag"`
	Jobs     []job    `xml:"job"`
	Children []child  `xml:"child"`
}

type job struct {
	ID      string `xml:"id,attr"`
	Name    string `xml:"name,attr"`
	Runtime string `xml:"runtime,attr"`
	Uses    []uses `xml:"uses"`
}

// uses carries the file name in "file" (DAX 2) or "name" (DAX 3).
type uses struct {
	File string `xml:"file,attr"`
	Name string `xml:"name,attr"`
	Link string `xml:"link,attr"`
	Size string `xml:"size,attr"`
}

type child struct {
	Ref     string   `xml:"ref,attr"`
	Parents []parent `xml:"parent"`
}

type parent struct {
	Ref string `xml:"ref,attr"`
}

// Load reads the DAX file at path. The workflow is named after the file.
func Load(path string, referenceSpeed float64) (*workflow.Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dax %s", path)
	}
	defer f.Close()

	wf, err := Parse(f, WorkflowName(path), referenceSpeed)
	if err != nil {
		return nil, errors.Wrapf(err, "loading dax %s", path)
	}
	return wf, nil
}

// WorkflowName is the base name of path up to the first underscore, so
// "dax/Montage_25.xml" is the "Montage" workflow.
func WorkflowName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '_'); i >= 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse decodes a DAX document into a validated workflow. Every job length
// is its runtime in seconds times referenceSpeed (MIPS).
func Parse(r io.Reader, name string, referenceSpeed float64) (*workflow.Workflow, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decoding dax")
	}

	specs := make([]workflow.Spec, 0, len(doc.Jobs))
	for _, j := range doc.Jobs {
		runtime, err := parseNumber(j.Runtime)
		if err != nil {
			return nil, errors.Wrapf(err, "job %q: runtime", j.ID)
		}
		spec := workflow.Spec{ID: j.ID, Name: j.Name, Length: runtime * referenceSpeed}
		for _, u := range j.Uses {
			if !strings.EqualFold(u.Link, "input") {
				continue
			}
			size, err := parseNumber(u.Size)
			if err != nil {
				return nil, errors.Wrapf(err, "job %q: file size", j.ID)
			}
			file := u.File
			if file == "" {
				file = u.Name
			}
			spec.Inputs = append(spec.Inputs, workflow.FileItem{Name: file, Size: size})
		}
		specs = append(specs, spec)
	}

	var edges []workflow.Edge
	for _, c := range doc.Children {
		for _, p := range c.Parents {
			edges = append(edges, workflow.Edge{From: p.Ref, To: c.Ref})
		}
	}
	return workflow.New(name, specs, edges)
}

func parseNumber(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
