package solver

import (
	"reflect"
	"strings"
	"testing"
)

func TestKind_KnownSolvers(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{NameGD, KindIter},
		{NameBacktracking, KindIter},
		{NameBFGS, KindIter},
		{NameAnneal, KindIter},
		{NameNelderMead, KindSimplex},
		{NamePSO, KindPopulation},
	}
	for _, tc := range cases {
		got, err := Kind(tc.name)
		if err != nil {
			t.Fatalf("Kind(%q) failed: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("Kind(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestKind_UnknownSolver(t *testing.T) {
	_, err := Kind("newton")
	if err == nil || !strings.Contains(err.Error(), "unknown solver") {
		t.Errorf("Expected an unknown-solver error, got %v", err)
	}
}

func TestNames_SortedComplete(t *testing.T) {
	want := []string{NameAnneal, NameBacktracking, NameBFGS, NameGD, NameNelderMead, NamePSO}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
