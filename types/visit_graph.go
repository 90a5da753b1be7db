package types

import (
	"path"
	"sort"
	"strconv"

	"github.com/zeu5/sumo-lane-rl/util"
)

// VisitGraph records the states reached by a policy and the actions
// connecting them, keyed by the state hash
type VisitGraph struct {
	Nodes map[string]*Node
}

func NewVisitGraph() *VisitGraph {
	return &VisitGraph{
		Nodes: make(map[string]*Node),
	}
}

// Update adds the edge from -action-> to and returns true when from was not visited before
func (v *VisitGraph) Update(from State, action string, to State) bool {
	fromKey := from.Hash()
	toKey := to.Hash()
	new := false
	if _, ok := v.Nodes[fromKey]; !ok {
		v.Nodes[fromKey] = NewNode(fromKey)
		new = true
	}
	if _, ok := v.Nodes[toKey]; !ok {
		v.Nodes[toKey] = NewNode(toKey)
	}
	v.Nodes[fromKey].Visits += 1
	v.Nodes[fromKey].AddNext(action, toKey)
	v.Nodes[toKey].AddPrev(action, fromKey)
	return new
}

// AddTrace adds every step of the trace to the graph
func (v *VisitGraph) AddTrace(t *Trace) {
	for i := 0; i < t.Len(); i++ {
		s, a, tr, _ := t.Get(i)
		if tr == nil || tr.State == nil {
			continue
		}
		v.Update(s, a.Hash(), tr.State)
	}
}

func (v *VisitGraph) GetVisits() map[string]int {
	results := make(map[string]int)
	for k, n := range v.Nodes {
		results[k] = n.Visits
	}
	return results
}

// Visited returns the sorted keys of the states that were acted upon at least once
func (v *VisitGraph) Visited() []string {
	out := make([]string, 0, len(v.Nodes))
	for k, n := range v.Nodes {
		if n.Visits > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Edges counts the distinct (state, action, next state) triples
func (v *VisitGraph) Edges() int {
	count := 0
	for _, n := range v.Nodes {
		for _, next := range n.Next {
			count += len(next)
		}
	}
	return count
}

func (v *VisitGraph) Record(filePath string) error {
	return util.SaveJson(filePath, v)
}

type Node struct {
	Key    string
	Visits int
	// Next, Prev: Each action can lead to many states
	Next map[string]map[string]bool
	Prev map[string]map[string]bool
}

func NewNode(key string) *Node {
	return &Node{
		Key:    key,
		Visits: 0,
		Next:   make(map[string]map[string]bool),
		Prev:   make(map[string]map[string]bool),
	}
}

func (n *Node) AddPrev(a, prev string) {
	if _, ok := n.Prev[a]; !ok {
		n.Prev[a] = make(map[string]bool)
	}
	n.Prev[a][prev] = true
}

func (n *Node) AddNext(a, next string) {
	if _, ok := n.Next[a]; !ok {
		n.Next[a] = make(map[string]bool)
	}
	n.Next[a][next] = true
}

// VisitAnalyzer builds one visit graph over all the episodes of an experiment
type VisitAnalyzer struct {
	graph *VisitGraph
}

var _ Analyzer = &VisitAnalyzer{}

func NewVisitAnalyzer() *VisitAnalyzer {
	return &VisitAnalyzer{graph: NewVisitGraph()}
}

func (v *VisitAnalyzer) Analyze(_ int, _ int, _ string, trace *Trace) {
	v.graph.AddTrace(trace)
}

func (v *VisitAnalyzer) DataSet() DataSet {
	return v.graph
}

func (v *VisitAnalyzer) Reset() {
	v.graph = NewVisitGraph()
}

// Coverage of an experiment
type Coverage struct {
	States int
	Edges  int
}

// CoverageComparator writes the visit graph of every experiment to
// savePath/<run>_<experiment>_visits.json and hands the coverage to report
func CoverageComparator(savePath string, report func(run int, name string, c Coverage)) Comparator {
	return func(run int, _ int, names []string, datasets []DataSet) error {
		for i, ds := range datasets {
			graph, ok := ds.(*VisitGraph)
			if !ok {
				continue
			}
			if err := graph.Record(path.Join(savePath, strconv.Itoa(run)+"_"+names[i]+"_visits.json")); err != nil {
				return err
			}
			if report != nil {
				report(run, names[i], Coverage{States: len(graph.Visited()), Edges: graph.Edges()})
			}
		}
		return nil
	}
}
