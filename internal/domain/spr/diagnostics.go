package spr

import "fmt"

// disjointSet is a union-find over scout positions.
type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	d := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range d.parent {
		d.parent[i] = i
	}
	return d
}

func (d *disjointSet) find(i int) int {
	for d.parent[i] != i {
		d.parent[i] = d.parent[d.parent[i]]
		i = d.parent[i]
	}
	return i
}

func (d *disjointSet) union(a, b int) bool {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return false
	}
	switch {
	case d.rank[ra] < d.rank[rb]:
		d.parent[ra] = rb
	case d.rank[ra] > d.rank[rb]:
		d.parent[rb] = ra
	default:
		d.parent[rb] = ra
		d.rank[ra]++
	}
	return true
}

// countComponents returns how many groups of scouts are linked by sharing
// at least one equation.
func countComponents(n int, rows [][]int) int {
	d := newDisjointSet(n)
	components := n
	for _, row := range rows {
		for i := 1; i < len(row); i++ {
			if d.union(row[0], row[i]) {
				components--
			}
		}
	}
	return components
}

// diagnose explains a solve that did not reach the threshold.
func diagnose(equations, scouts, components int, delta float64, maxIter int) string {
	switch {
	case components > 1:
		return fmt.Sprintf(
			"did not converge after %d iterations: scout participation graph is disconnected into %d groups that never share an alliance",
			maxIter, components)
	case equations < scouts:
		return fmt.Sprintf(
			"did not converge after %d iterations: only %d usable equations for %d scouts",
			maxIter, equations, scouts)
	default:
		return fmt.Sprintf(
			"did not converge after %d iterations (last delta %.6g): insufficient partner overlap among scouts",
			maxIter, delta)
	}
}

// disconnectedWarning accompanies a converged solve whose values are only
// comparable within each participation group.
func disconnectedWarning(components int) string {
	return fmt.Sprintf(
		"converged, but scouts form %d groups that never share an alliance; error values are only comparable within a group",
		components)
}

// divergedMessage explains a solve abandoned because residuals left the
// float range.
func divergedMessage(iter int) string {
	return fmt.Sprintf(
		"diverged in iteration %d: alliance errors are too large to attribute; check observations for out-of-range counts",
		iter)
}
