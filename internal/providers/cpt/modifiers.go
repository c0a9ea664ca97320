package cpt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind of one CPT entry as stored in the kind column.
const (
	KindCode           = "code"
	KindCat2           = "cat-2"
	KindGeneralMod     = "general"
	KindCat2Mod        = "cat-2-modifier"
	KindPhysicalStatus = "physical-status"
	KindHCPCS          = "hcpcs"
	KindMetadata       = "metadata"
)

// Entry is the pre-materialised row of one CPT code or modifier.
type Entry struct {
	Code         string
	Kind         string
	Descriptor   string
	Telemedicine bool
	Active       bool
}

// IsModifierKind reports whether the entry may appear after a ':' in a
// code expression; a kind=code entry cannot be used as a modifier.
func (e Entry) IsModifierKind() bool {
	switch e.Kind {
	case KindGeneralMod, KindCat2Mod, KindPhysicalStatus, KindHCPCS:
		return true
	}
	return false
}

// mutually exclusive modifier groups: at most one of each set may appear
// in one expression.
var exclusiveGroups = [][]string{
	{"25", "57", "59"},
	{"52", "53", "73", "74"},
	{"76", "77", "78", "79"},
	{"93", "95"},
}

// modifier63Codes enumerates the codes on which modifier 63 is valid in
// addition to the 20100-69990 range; the entries that fall inside that
// range are already accepted by the range check.
var modifier63Codes = map[string]bool{
	"92920": true, "92928": true, "92953": true, "92960": true,
	"93312": true, "93318": true, "93452": true, "93505": true,
	"93563": true, "93564": true, "93568": true, "93569": true,
	"93573": true, "93574": true, "93575": true,
	"33016": true, "33017": true, "33018": true, "33019": true,
	"33254": true, "33255": true, "33256": true, "33257": true,
	"33880": true, "33881": true, "33883": true, "33884": true, "33886": true,
	"36568": true, "36569": true, "36570": true, "36571": true, "36576": true, "36578": true,
}

// modifier92Codes enumerates the only codes modifier 92 may attach to.
var modifier92Codes = map[string]bool{
	"86701": true, "86702": true, "86703": true, "87389": true,
}

// anesthesia code range carrying physical-status modifiers.
var (
	anesthesiaLow  = decimal.NewFromInt(100)   // 00100
	anesthesiaHigh = decimal.NewFromInt(1999)  // 01999
	mod63Low       = decimal.NewFromInt(20100)
	mod63High      = decimal.NewFromInt(69990)
)

// numericCode parses the numeric part of a CPT code; codes with an
// alphabetic suffix (0001F, 3288F, category-3 T codes) report ok=false
// for range checks.
func numericCode(code string) (decimal.Decimal, bool) {
	if _, err := strconv.Atoi(code); err != nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(code)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func inRange(code string, low, high decimal.Decimal) bool {
	d, ok := numericCode(code)
	if !ok {
		return false
	}
	return d.Cmp(low) >= 0 && d.Cmp(high) <= 0
}

// SplitExpression splits `code[:modifier[:modifier...]]`.
func SplitExpression(expr string) (code string, modifiers []string) {
	parts := strings.Split(expr, ":")
	return parts[0], parts[1:]
}

// ValidateExpression applies the modifier-compatibility rules to a base
// code and its modifiers, returning the first violation.
func ValidateExpression(code Entry, mods []Entry) error {
	isCat2 := code.Kind == KindCat2
	haveMod := make(map[string]bool, len(mods))
	for _, m := range mods {
		haveMod[m.Code] = true
	}

	for _, m := range mods {
		if !m.IsModifierKind() {
			return fmt.Errorf("%s is a %s and cannot be used as a modifier", m.Code, m.Kind)
		}
		switch m.Kind {
		case KindCat2Mod:
			if !isCat2 {
				return fmt.Errorf("The modifier %s can only be used with cat-2 codes", m.Code)
			}
		case KindPhysicalStatus:
			if !inRange(code.Code, anesthesiaLow, anesthesiaHigh) {
				return fmt.Errorf("The modifier %s can only be used with anesthesia codes (00100-01999)", m.Code)
			}
		case KindHCPCS:
			if !haveMod["59"] {
				return fmt.Errorf("HCPCS modifier %s requires the presence of modifier 59", m.Code)
			}
		default:
			if isCat2 {
				return fmt.Errorf("The modifier %s cannot be used with cat-2 codes", m.Code)
			}
		}
	}

	for _, group := range exclusiveGroups {
		n := 0
		for _, g := range group {
			if haveMod[g] {
				n++
			}
		}
		if n > 1 {
			return fmt.Errorf("There can only be one modifier in the set %s", strings.Join(group, ", "))
		}
	}

	if haveMod["63"] && !inRange(code.Code, mod63Low, mod63High) && !modifier63Codes[code.Code] {
		return fmt.Errorf("The modifier 63 cannot be used with code %s", code.Code)
	}
	if haveMod["92"] && !modifier92Codes[code.Code] {
		return fmt.Errorf("The modifier 92 can only be used with codes 86701, 86702, 86703 and 87389")
	}
	if haveMod["95"] && !code.Telemedicine {
		return fmt.Errorf("The modifier 95 can only be used with telemedicine codes")
	}
	return nil
}
