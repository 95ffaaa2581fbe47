// Package blood holds the vocabulary shared by requests, inventory and donors.
package blood

import "strings"

// Group is an ABO/Rh blood group.
type Group string

const (
	APos  Group = "A+"
	ANeg  Group = "A-"
	BPos  Group = "B+"
	BNeg  Group = "B-"
	ABPos Group = "AB+"
	ABNeg Group = "AB-"
	OPos  Group = "O+"
	ONeg  Group = "O-"
)

// Groups lists every group in display order.
var Groups = []Group{APos, ANeg, BPos, BNeg, OPos, ONeg, ABPos, ABNeg}

func (g Group) Valid() bool {
	for _, v := range Groups {
		if g == v {
			return true
		}
	}
	return false
}

// Component is a blood product type.
type Component string

const (
	WholeBlood      Component = "Whole Blood"
	PackedRBC       Component = "Packed RBC"
	Platelets       Component = "Platelets"
	Plasma          Component = "Plasma"
	Cryoprecipitate Component = "Cryoprecipitate"
)

var Components = []Component{WholeBlood, PackedRBC, Platelets, Plasma, Cryoprecipitate}

var componentAliases = map[string]Component{
	"prbc": PackedRBC,
	"cryo": Cryoprecipitate,
}

func (c Component) Valid() bool {
	for _, v := range Components {
		if c == v {
			return true
		}
	}
	return false
}

// ParseComponent accepts canonical names case-insensitively plus the short
// forms used by the hospital request wizard.
func ParseComponent(s string) (Component, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := componentAliases[key]; ok {
		return c, true
	}
	for _, c := range Components {
		if strings.ToLower(string(c)) == key {
			return c, true
		}
	}
	return Component(s), false
}

// ParseGroup normalises case ("ab+" -> "AB+").
func ParseGroup(s string) (Group, bool) {
	g := Group(strings.ToUpper(strings.TrimSpace(s)))
	return g, g.Valid()
}
