// Package solver provides the built-in optimization algorithms. Each
// solver implements engine.Solver over one of the three state families
// and carries JSON-serializable configuration and mutable fields, so a
// checkpointed solver resumes exactly where it stopped.
package solver

import (
	"fmt"
	"sort"
)

// Registry keys for the built-in solvers.
const (
	NameGD           = "gd"
	NameBacktracking = "backtracking"
	NameBFGS         = "bfgs"
	NameNelderMead   = "neldermead"
	NamePSO          = "pso"
	NameAnneal       = "anneal"
)

// State families. Run assembly picks the executor instantiation by kind.
const (
	KindIter       = "iter"
	KindSimplex    = "simplex"
	KindPopulation = "population"
)

var kinds = map[string]string{
	NameGD:           KindIter,
	NameBacktracking: KindIter,
	NameBFGS:         KindIter,
	NameAnneal:       KindIter,
	NameNelderMead:   KindSimplex,
	NamePSO:          KindPopulation,
}

// Kind returns the state family for a registered solver name.
func Kind(name string) (string, error) {
	k, ok := kinds[name]
	if !ok {
		return "", fmt.Errorf("unknown solver %q (have %v)", name, Names())
	}
	return k, nil
}

// Names returns the registered solver names, sorted.
func Names() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
