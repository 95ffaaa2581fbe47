package blood

import "testing"

func TestParseComponent(t *testing.T) {
	tests := map[string]Component{
		"Whole Blood":     WholeBlood,
		"packed rbc":      PackedRBC,
		"PRBC":            PackedRBC,
		"Cryo":            Cryoprecipitate,
		" Platelets ":     Platelets,
		"cryoprecipitate": Cryoprecipitate,
	}
	for in, want := range tests {
		got, ok := ParseComponent(in)
		if !ok || got != want {
			t.Errorf("ParseComponent(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseComponent("Serum"); ok {
		t.Error("expected Serum to be rejected")
	}
}

func TestParseGroup(t *testing.T) {
	if g, ok := ParseGroup("ab-"); !ok || g != ABNeg {
		t.Errorf("expected AB-, got %q %v", g, ok)
	}
	if _, ok := ParseGroup("C+"); ok {
		t.Error("expected C+ to be rejected")
	}
}

func TestGroups_AllValid(t *testing.T) {
	if len(Groups) != 8 {
		t.Fatalf("expected 8 groups, got %d", len(Groups))
	}
	for _, g := range Groups {
		if !g.Valid() {
			t.Errorf("%q should be valid", g)
		}
	}
}
