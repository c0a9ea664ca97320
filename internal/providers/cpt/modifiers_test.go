package cpt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func code(c string) Entry     { return Entry{Code: c, Kind: KindCode, Active: true} }
func cat2(c string) Entry     { return Entry{Code: c, Kind: KindCat2, Active: true} }
func mod(c string) Entry      { return Entry{Code: c, Kind: KindGeneralMod, Active: true} }
func cat2Mod(c string) Entry  { return Entry{Code: c, Kind: KindCat2Mod, Active: true} }
func physical(c string) Entry { return Entry{Code: c, Kind: KindPhysicalStatus, Active: true} }
func hcpcs(c string) Entry    { return Entry{Code: c, Kind: KindHCPCS, Active: true} }

func TestSplitExpression(t *testing.T) {
	base, mods := SplitExpression("12345:52:53")
	assert.Equal(t, "12345", base)
	assert.Equal(t, []string{"52", "53"}, mods)

	base, mods = SplitExpression("99213")
	assert.Equal(t, "99213", base)
	assert.Empty(t, mods)
}

func TestGeneralModifierRejectedOnCat2(t *testing.T) {
	err := ValidateExpression(cat2("0001F"), []Entry{mod("25")})
	require.Error(t, err)
	assert.Equal(t, "The modifier 25 cannot be used with cat-2 codes", err.Error())
}

func TestCat2ModifierRequiresCat2Code(t *testing.T) {
	err := ValidateExpression(code("99213"), []Entry{cat2Mod("1P")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can only be used with cat-2 codes")

	assert.NoError(t, ValidateExpression(cat2("0001F"), []Entry{cat2Mod("1P")}))
}

func TestPhysicalStatusOnlyOnAnesthesia(t *testing.T) {
	assert.NoError(t, ValidateExpression(code("00100"), []Entry{physical("P3")}))
	err := ValidateExpression(code("99213"), []Entry{physical("P3")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "00100-01999")
}

func TestHCPCSRequiresModifier59(t *testing.T) {
	err := ValidateExpression(code("99213"), []Entry{hcpcs("XE")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires the presence of modifier 59")

	assert.NoError(t, ValidateExpression(code("99213"), []Entry{hcpcs("XE"), mod("59")}))
}

func TestMutuallyExclusiveGroups(t *testing.T) {
	err := ValidateExpression(code("12345"), []Entry{mod("52"), mod("53")})
	require.Error(t, err)
	assert.Equal(t, "There can only be one modifier in the set 52, 53, 73, 74", err.Error())

	err = ValidateExpression(code("12345"), []Entry{mod("76"), mod("79")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "76, 77, 78, 79")
}

func TestModifier63Range(t *testing.T) {
	assert.NoError(t, ValidateExpression(code("20102"), []Entry{mod("63")}))
	assert.NoError(t, ValidateExpression(code("92920"), []Entry{mod("63")})) // enumerated exception
	err := ValidateExpression(code("99213"), []Entry{mod("63")})
	require.Error(t, err)
}

func TestModifier92Codes(t *testing.T) {
	assert.NoError(t, ValidateExpression(code("86701"), []Entry{mod("92")}))
	err := ValidateExpression(code("99213"), []Entry{mod("92")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "86701")
}

func TestModifier95RequiresTelemedicine(t *testing.T) {
	tele := Entry{Code: "99421", Kind: KindCode, Telemedicine: true, Active: true}
	assert.NoError(t, ValidateExpression(tele, []Entry{mod("95")}))
	err := ValidateExpression(code("99213"), []Entry{mod("95")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemedicine")
}

func TestCodeCannotBeModifier(t *testing.T) {
	err := ValidateExpression(code("99213"), []Entry{code("99214")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be used as a modifier")
}
