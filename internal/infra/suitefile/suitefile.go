// Package suitefile reads test suites written in YAML.
//
// A suite names an optional language and default entry point, followed by
// its cases:
//
//	language: javascript
//	entryPoint: add
//	cases:
//	  - description: adds small numbers
//	    arguments: [2, 3]
//	    expected: 5
//	  - description: tolerates rounding
//	    arguments: [0.1, 0.2]
//	    predicate: {kind: approx, value: 0.3}
//
// Mapping order is preserved when values are converted, so an expected
// object is rendered in failure messages the way it was written.
package suitefile

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"harness/internal/domain/execution"
)

// Suite is a decoded suite file.
type Suite struct {
	Name string
	// Language is empty when the file leaves it to the caller.
	Language   string
	EntryPoint string
	Cases      []execution.TestCase
}

type suiteDoc struct {
	Name       string    `yaml:"name"`
	Language   string    `yaml:"language"`
	EntryPoint string    `yaml:"entryPoint"`
	Cases      []caseDoc `yaml:"cases"`
}

type caseDoc struct {
	Description string        `yaml:"description"`
	EntryPoint  string        `yaml:"entryPoint"`
	Arguments   yaml.Node     `yaml:"arguments"`
	Expected    yaml.Node     `yaml:"expected"`
	Predicate   *predicateDoc `yaml:"predicate"`
}

type predicateDoc struct {
	Kind    string    `yaml:"kind"`
	Value   yaml.Node `yaml:"value"`
	Values  yaml.Node `yaml:"values"`
	Epsilon float64   `yaml:"epsilon"`
}

// Load reads and parses the suite at path.
func Load(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite %s: %w", path, err)
	}
	suite, err := Parse(data)
	if err != nil {
		return Suite{}, fmt.Errorf("parse suite %s: %w", path, err)
	}
	return suite, nil
}

// Parse decodes a suite document and validates every case.
func Parse(data []byte) (Suite, error) {
	var doc suiteDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Suite{}, err
	}

	suite := Suite{
		Name:       doc.Name,
		Language:   doc.Language,
		EntryPoint: doc.EntryPoint,
		Cases:      make([]execution.TestCase, 0, len(doc.Cases)),
	}

	for idx, c := range doc.Cases {
		tc, err := c.toTestCase(idx, doc.EntryPoint)
		if err != nil {
			return Suite{}, fmt.Errorf("case %d: %w", idx+1, err)
		}
		if err := tc.Validate(); err != nil {
			return Suite{}, fmt.Errorf("case %d: %w", idx+1, err)
		}
		suite.Cases = append(suite.Cases, tc)
	}

	return suite, nil
}

func (c caseDoc) toTestCase(idx int, defaultEntry string) (execution.TestCase, error) {
	tc := execution.TestCase{
		Description: c.Description,
		EntryPoint:  c.EntryPoint,
		Arguments:   []execution.Value{},
	}
	if tc.Description == "" {
		tc.Description = fmt.Sprintf("case %d", idx+1)
	}
	if tc.EntryPoint == "" {
		tc.EntryPoint = defaultEntry
	}

	if present(&c.Arguments) {
		args, err := nodeValue(&c.Arguments)
		if err != nil {
			return tc, fmt.Errorf("arguments: %w", err)
		}
		if args.Kind() != execution.KindSequence {
			return tc, fmt.Errorf("arguments: expected a sequence, got %s", args.Kind())
		}
		tc.Arguments = append(tc.Arguments, args.Items()...)
	}

	switch {
	case c.Predicate != nil:
		p, err := c.Predicate.toPredicate()
		if err != nil {
			return tc, fmt.Errorf("predicate: %w", err)
		}
		tc.Expected = execution.Satisfies(p)
	case present(&c.Expected):
		v, err := nodeValue(&c.Expected)
		if err != nil {
			return tc, fmt.Errorf("expected: %w", err)
		}
		tc.Expected = execution.Equals(v)
	default:
		return tc, fmt.Errorf("either expected or predicate is required")
	}

	return tc, nil
}

func (p predicateDoc) toPredicate() (execution.Predicate, error) {
	pred := execution.Predicate{
		Kind:    execution.PredicateKind(p.Kind),
		Epsilon: p.Epsilon,
	}
	if present(&p.Value) {
		v, err := nodeValue(&p.Value)
		if err != nil {
			return pred, fmt.Errorf("value: %w", err)
		}
		pred.Value = v
	}
	if present(&p.Values) {
		v, err := nodeValue(&p.Values)
		if err != nil {
			return pred, fmt.Errorf("values: %w", err)
		}
		if v.Kind() != execution.KindSequence {
			return pred, fmt.Errorf("values: expected a sequence, got %s", v.Kind())
		}
		pred.Values = v.Items()
	}
	return pred, pred.Validate()
}

func present(n *yaml.Node) bool {
	return n.Kind != 0
}

const maxDepth = 256

// nodeValue converts a YAML node into a Value, keeping mapping order.
func nodeValue(n *yaml.Node) (execution.Value, error) {
	return convert(n, 0)
}

func convert(n *yaml.Node, depth int) (execution.Value, error) {
	if depth > maxDepth {
		return execution.Value{}, fmt.Errorf("line %d: value nested too deeply", n.Line)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return execution.Null(), nil
		}
		return convert(n.Content[0], depth)
	case yaml.AliasNode:
		return convert(n.Alias, depth+1)
	case yaml.SequenceNode:
		items := make([]execution.Value, 0, len(n.Content))
		for _, child := range n.Content {
			v, err := convert(child, depth+1)
			if err != nil {
				return execution.Value{}, err
			}
			items = append(items, v)
		}
		return execution.Sequence(items...), nil
	case yaml.MappingNode:
		entries := make([]execution.Entry, 0, len(n.Content)/2)
		seen := make(map[string]struct{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if _, dup := seen[key]; dup {
				return execution.Value{}, fmt.Errorf("line %d: duplicate key %q", n.Content[i].Line, key)
			}
			seen[key] = struct{}{}
			v, err := convert(n.Content[i+1], depth+1)
			if err != nil {
				return execution.Value{}, err
			}
			entries = append(entries, execution.Entry{Key: key, Value: v})
		}
		return execution.Map(entries...), nil
	case yaml.ScalarNode:
		return scalar(n)
	}
	return execution.Value{}, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func scalar(n *yaml.Node) (execution.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return execution.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return execution.Value{}, err
		}
		return execution.Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return execution.Value{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return execution.Value{}, fmt.Errorf("line %d: %w", n.Line, execution.ErrNonFiniteNumber)
		}
		return execution.Number(f), nil
	default:
		return execution.String(n.Value), nil
	}
}
