package geonorm

import "testing"

func TestDirectLookup(t *testing.T) {
	n := New(nil, nil)
	c := n.Normalize("Chicago")
	if c.Name != "Chicago" || !c.HasCoord {
		t.Fatalf("expected direct canonical match, got %+v", c)
	}
}

func TestAliasLookup(t *testing.T) {
	n := New(nil, nil)
	c := n.Normalize("NYC")
	if c.Name != "New York City" {
		t.Fatalf("expected alias to resolve to New York City, got %+v", c)
	}
}

func TestFuzzyMatch(t *testing.T) {
	n := New(nil, nil)
	c := n.Normalize("Chicagoo") // typo, should still fuzzy-match
	if c.Name != "Chicago" {
		t.Fatalf("expected fuzzy match to Chicago, got %+v", c)
	}
}

func TestUnknownFallsBackToInputNeverError(t *testing.T) {
	n := New(nil, nil)
	c := n.Normalize("Nowhereville Station")
	if c.Name != "Nowhereville Station" {
		t.Fatalf("expected fallback to input, got %+v", c)
	}
	if c.HasCoord {
		t.Fatalf("unexpected coordinates on unknown location")
	}
}

func TestUserMappingOverridesBuiltin(t *testing.T) {
	n := New(map[string]Canonical{
		"Chicago": {Name: "Chicago", Lat: 1, Lng: 2, HasCoord: true},
	}, nil)
	c := n.Normalize("chicago")
	if c.Lat != 1 || c.Lng != 2 {
		t.Fatalf("expected user mapping to override builtin, got %+v", c)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New(nil, nil)
	first := n.Normalize("nyc")
	second := n.Normalize(first.Name)
	if first.Name != second.Name {
		t.Fatalf("expected normalize(normalize(s)) == normalize(s), got %q then %q", first.Name, second.Name)
	}
}

func TestDiceSelfSimilarityIsOne(t *testing.T) {
	if got := diceCoefficient("chicago", "chicago"); got != 1 {
		t.Fatalf("expected similarity(x,x) == 1, got %v", got)
	}
}

func TestDiceSymmetric(t *testing.T) {
	a, b := "chicago", "chicagoo"
	if diceCoefficient(a, b) != diceCoefficient(b, a) {
		t.Fatalf("expected symmetric similarity")
	}
}
