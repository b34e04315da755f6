package nameutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamesMatchViaNicknames(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{"exact match", "Mike", "mike", true},
		{"nickname group", "Mike", "Michael", true},
		{"nickname group reverse", "Michael", "Mike", true},
		{"larger group member", "Kate", "Katherine", true},
		{"spelling variation", "Sarah", "Sara", true},
		{"bidirectional spelling variation", "Sara", "Sarah", true},
		{"unrelated names", "Mike", "John", false},
		{"not in any group", "Xavier", "Xander", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NamesMatchViaNicknames(tc.a, tc.b, nil))
		})
	}
}

func TestFindNicknameVariations(t *testing.T) {
	variations := FindNicknameVariations("mike", nil)
	assert.Contains(t, variations, "michael")
	assert.NotContains(t, variations, "mike")

	variations = FindNicknameVariations("sarah", nil)
	assert.Contains(t, variations, "sara")
}

func TestGetNicknameGroups_Overrides(t *testing.T) {
	overrides := map[string][]string{
		"jonathan": {"jon", "johnny"},
	}

	groups := GetNicknameGroups(overrides)
	assert.Len(t, groups, 1)
	assert.True(t, NamesMatchViaNicknames("jonathan", "jon", overrides))
	assert.False(t, NamesMatchViaNicknames("mike", "michael", overrides))
}
