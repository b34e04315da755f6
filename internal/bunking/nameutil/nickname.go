package nameutil

import "strings"

// DefaultNicknameGroups is the built-in set of name equivalence classes:
// each group holds a canonical name plus its common nicknames, all
// lowercase. An optional config source (see config.NameMatching) may
// override this set at startup.
var DefaultNicknameGroups = []map[string]struct{}{
	set("mike", "michael"),
	set("matt", "matthew"),
	set("ben", "benjamin"),
	set("sam", "samuel"),
	set("kate", "katie", "katherine", "kathryn", "catherine"),
	set("liz", "elizabeth", "beth", "lizzie"),
	set("alex", "alexander", "alexandra"),
	set("chris", "christopher", "christina", "christine"),
	set("dan", "daniel", "danny"),
	set("rob", "robert", "robbie", "bobby", "bob"),
	set("nick", "nicholas", "nicky"),
	set("tom", "thomas", "tommy"),
	set("will", "william", "willy", "billy", "bill"),
	set("dave", "david", "davey"),
	set("john", "johnny", "jack"),
	set("joe", "joseph", "joey"),
	set("steve", "steven", "stephen"),
	set("andy", "andrew", "drew"),
	set("jim", "james", "jimmy", "jamie"),
	set("tim", "timothy", "timmy"),
	set("pete", "peter"),
	set("greg", "gregory"),
	set("josh", "joshua"),
	set("zach", "zachary", "zack"),
	set("jake", "jacob"),
	set("maddie", "madison", "madeline", "madeleine"),
	set("abby", "abigail", "abbey"),
	set("becca", "rebecca", "becky", "rebekah"),
	set("jess", "jessica", "jessie"),
	set("jen", "jennifer", "jenny"),
	set("sara", "sarah"),
	set("rachael", "rachel"),
	set("rick", "richard", "ricky", "dick"),
	set("chuck", "charles", "charlie"),
	set("ted", "theodore", "teddy"),
	set("ed", "edward", "eddie"),
	set("frank", "francis"),
	set("hank", "henry"),
	set("jerry", "jerome", "gerald"),
	set("larry", "lawrence"),
	set("pat", "patrick", "patricia"),
	set("ron", "ronald", "ronnie"),
	set("terry", "terence", "teresa"),
	set("tony", "anthony"),
	set("vince", "vincent", "vinny"),
}

// SpellingVariations maps a name to common spelling variants that are not
// nicknames, bidirectionally (each side lists the other).
var SpellingVariations = map[string][]string{
	"blooma":    {"bluma", "blouma"},
	"bluma":     {"blooma", "blouma"},
	"blouma":    {"blooma", "bluma"},
	"chloe":     {"chloey", "khloe"},
	"chloey":    {"chloe"},
	"khloe":     {"chloe"},
	"zoe":       {"zoey", "zooey", "zoie"},
	"zoey":      {"zoe"},
	"zooey":     {"zoe"},
	"zoie":      {"zoe"},
	"sarah":     {"sara"},
	"sara":      {"sarah"},
	"rachel":    {"rachael"},
	"rachael":   {"rachel"},
	"rebecca":   {"rebekah", "becca"},
	"rebekah":   {"rebecca"},
	"becca":     {"rebecca"},
	"katherine": {"kathryn", "catherine"},
	"kathryn":   {"katherine", "catherine"},
	"catherine": {"katherine", "kathryn"},
	"stephen":   {"steven"},
	"steven":    {"stephen"},
	"jeffrey":   {"geoffrey"},
	"geoffrey":  {"jeffrey"},
	"philip":    {"phillip"},
	"phillip":   {"philip"},
	"bryan":     {"brian"},
	"brian":     {"bryan"},
	"shaun":     {"shawn", "sean"},
	"shawn":     {"shaun", "sean"},
	"sean":      {"shaun", "shawn"},
}

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// GetNicknameGroups returns the active nickname groups: overrides supplied
// via config.NameMatching.CommonNicknames if non-empty, else the built-in
// defaults. Each entry in overrides is {canonical: [nicknames...]}; the
// canonical name plus its nicknames form one group.
func GetNicknameGroups(overrides map[string][]string) []map[string]struct{} {
	if len(overrides) == 0 {
		return DefaultNicknameGroups
	}

	var groups []map[string]struct{}
	processed := map[string]struct{}{}

	for full, nicknames := range overrides {
		fullLower := strings.ToLower(full)
		if _, ok := processed[fullLower]; ok {
			continue
		}
		group := map[string]struct{}{fullLower: {}}
		for _, n := range nicknames {
			group[strings.ToLower(n)] = struct{}{}
		}
		groups = append(groups, group)
		for k := range group {
			processed[k] = struct{}{}
		}
	}

	return groups
}

// FindNicknameVariations returns every other member of name's nickname
// group plus its spelling variants, de-duplicated, excluding name itself.
func FindNicknameVariations(name string, overrides map[string][]string) []string {
	nameLower := strings.ToLower(name)
	seen := map[string]struct{}{}
	var variations []string

	for _, group := range GetNicknameGroups(overrides) {
		if _, ok := group[nameLower]; !ok {
			continue
		}
		for n := range group {
			if n == nameLower {
				continue
			}
			if _, dup := seen[n]; !dup {
				seen[n] = struct{}{}
				variations = append(variations, n)
			}
		}
		break
	}

	for _, n := range SpellingVariations[nameLower] {
		if _, dup := seen[n]; !dup {
			seen[n] = struct{}{}
			variations = append(variations, n)
		}
	}

	return variations
}

// NamesMatchViaNicknames reports whether name1 and name2 match exactly or
// are members of the same nickname group or bidirectional spelling
// variation.
func NamesMatchViaNicknames(name1, name2 string, overrides map[string][]string) bool {
	n1 := strings.ToLower(strings.TrimSpace(name1))
	n2 := strings.ToLower(strings.TrimSpace(name2))

	if n1 == n2 {
		return true
	}

	for _, group := range GetNicknameGroups(overrides) {
		_, in1 := group[n1]
		_, in2 := group[n2]
		if in1 && in2 {
			return true
		}
	}

	for _, v := range SpellingVariations[n1] {
		if v == n2 {
			return true
		}
	}
	for _, v := range SpellingVariations[n2] {
		if v == n1 {
			return true
		}
	}

	return false
}
