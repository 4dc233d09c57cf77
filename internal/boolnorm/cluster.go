package boolnorm

import (
	"fmt"
	"sort"
)

// Group is one canonical rendering and the inputs that produced it.
type Group struct {
	Canonical string
	Count     int
	// Members are input indices in submission order.
	Members []int
}

// First returns the index of the earliest input in the group.
func (g Group) First() int {
	return g.Members[0]
}

// ItemError is a batch input that could not be normalized.
type ItemError struct {
	Index int
	Input string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("query %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Report is the outcome of clustering a batch of queries.
type Report struct {
	Total    int
	Groups   []Group
	Failures []*ItemError
}

// Cluster groups queries with the default normalizer.
func Cluster(queries []string) *Report {
	return defaultNormalizer.Cluster(queries)
}

// Cluster normalizes every query and groups identical renderings, ranked
// by descending count and then by first occurrence. Inputs that fail to
// parse or normalize are reported in Failures and do not stop the batch.
func (n *Normalizer) Cluster(queries []string) *Report {
	r := &Report{Total: len(queries)}
	byText := make(map[string]int)
	for i, q := range queries {
		canon, err := n.NormalizeQuery(q)
		if err != nil {
			r.Failures = append(r.Failures, &ItemError{Index: i, Input: q, Err: err})
			continue
		}
		gi, ok := byText[canon]
		if !ok {
			gi = len(r.Groups)
			byText[canon] = gi
			r.Groups = append(r.Groups, Group{Canonical: canon})
		}
		r.Groups[gi].Count++
		r.Groups[gi].Members = append(r.Groups[gi].Members, i)
	}
	// Groups were appended in first-occurrence order.
	sort.SliceStable(r.Groups, func(i, j int) bool {
		return r.Groups[i].Count > r.Groups[j].Count
	})
	return r
}
