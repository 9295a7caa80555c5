// Package tester speaks the protocol of the remote test coordinator that runs
// inside each node, and drives a distributed test run across a scenario's
// nodes.
package tester

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Process is the remote coordinator's process identifier.
const Process = "tester:tester:sys"

// Run asks a node's coordinator to run the named tests across the nodes.
type Run struct {
	InputNodeNames []string `json:"input_node_names"`
	TestNames      []string `json:"test_names"`
	TestTimeout    uint64   `json:"test_timeout"`
}

// Body encodes the request in the coordinator's externally tagged form,
// {"Run": {...}}.
func (r Run) Body() string {
	data, _ := json.Marshal(struct {
		Run Run `json:"Run"`
	}{r})
	return string(data)
}

// VerdictKind discriminates Verdict.
type VerdictKind int

const (
	VerdictPass VerdictKind = iota
	VerdictFail
	VerdictFullMessage
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictPass:
		return "Pass"
	case VerdictFail:
		return "Fail"
	case VerdictFullMessage:
		return "GetFullMessage"
	default:
		return "Unknown"
	}
}

// Failure locates a failed test.
type Failure struct {
	Test   string `json:"test"`
	File   string `json:"file"`
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

// Verdict is a coordinator response: Pass, Fail or GetFullMessage. Only Pass
// and Fail are valid answers to Run.
type Verdict struct {
	Kind        VerdictKind
	Failure     *Failure
	FullMessage json.RawMessage
}

// UnmarshalJSON decodes "Pass", {"Fail": {...}} and {"GetFullMessage": ...}.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return err
		}
		if tag != "Pass" {
			return fmt.Errorf("unknown verdict %q", tag)
		}
		*v = Verdict{Kind: VerdictPass}
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("malformed verdict: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("malformed verdict: expected one variant, got %d", len(tagged))
	}

	for tag, raw := range tagged {
		switch tag {
		case "Fail":
			var f Failure
			if err := json.Unmarshal(raw, &f); err != nil {
				return fmt.Errorf("malformed Fail verdict: %w", err)
			}
			*v = Verdict{Kind: VerdictFail, Failure: &f}
		case "GetFullMessage":
			*v = Verdict{Kind: VerdictFullMessage, FullMessage: raw}
		default:
			return fmt.Errorf("unknown verdict %q", tag)
		}
	}
	return nil
}

// ParseVerdict decodes a coordinator response body.
func ParseVerdict(body string) (Verdict, error) {
	var v Verdict
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return Verdict{}, err
	}
	return v, nil
}

// ErrUnexpectedResponse is returned when Run is answered with something
// other than Pass or Fail.
var ErrUnexpectedResponse = errors.New("FAIL: Unexpected Response")

// FailError carries a Fail verdict as an error.
type FailError struct {
	Failure
}

func (e *FailError) Error() string {
	return fmt.Sprintf("FAIL: %s %s:%d:%d", e.Test, e.File, e.Line, e.Column)
}
