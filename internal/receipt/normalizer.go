// Package receipt cleans up captured receipt data before it becomes an
// expense. Merchant strings on receipts arrive with terminal prefixes, store
// numbers and legal suffixes attached; normalization maps them onto a
// canonical display name and, where the merchant is recognized, a category.
package receipt

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category identifiers assigned by merchant recognition. Stored in an
// expense's CategoryID; callers are free to use their own IDs instead.
const (
	CategoryFood          = "food"
	CategoryTransport     = "transport"
	CategoryEntertainment = "entertainment"
	CategoryShopping      = "shopping"
	CategoryHealth        = "health"
	CategoryUtilities     = "utilities"
	CategoryHousing       = "housing"
)

// MerchantInfo is the result of normalizing one raw merchant string.
type MerchantInfo struct {
	// Name is the canonical display name.
	Name string
	// CategoryID is empty when the merchant was not recognized.
	CategoryID string
}

// knownMerchants maps lowercase keywords found in receipt text to canonical
// names and categories.
var knownMerchants = map[string]MerchantInfo{
	"woolworths":  {Name: "Woolworths", CategoryID: CategoryFood},
	"coles":       {Name: "Coles", CategoryID: CategoryFood},
	"aldi":        {Name: "Aldi", CategoryID: CategoryFood},
	"costco":      {Name: "Costco", CategoryID: CategoryFood},
	"mcdonald":    {Name: "McDonald's", CategoryID: CategoryFood},
	"starbucks":   {Name: "Starbucks", CategoryID: CategoryFood},
	"uber eats":   {Name: "Uber Eats", CategoryID: CategoryFood},
	"doordash":    {Name: "DoorDash", CategoryID: CategoryFood},
	"deliveroo":   {Name: "Deliveroo", CategoryID: CategoryFood},
	"uber":        {Name: "Uber", CategoryID: CategoryTransport},
	"lyft":        {Name: "Lyft", CategoryID: CategoryTransport},
	"shell":       {Name: "Shell", CategoryID: CategoryTransport},
	"bp":          {Name: "BP", CategoryID: CategoryTransport},
	"caltex":      {Name: "Caltex", CategoryID: CategoryTransport},
	"netflix":     {Name: "Netflix", CategoryID: CategoryEntertainment},
	"spotify":     {Name: "Spotify", CategoryID: CategoryEntertainment},
	"amazon":      {Name: "Amazon", CategoryID: CategoryShopping},
	"ikea":        {Name: "IKEA", CategoryID: CategoryShopping},
	"chemist":     {Name: "Chemist Warehouse", CategoryID: CategoryHealth},
	"pharmacy":    {Name: "Pharmacy", CategoryID: CategoryHealth},
	"origin":      {Name: "Origin Energy", CategoryID: CategoryUtilities},
	"telstra":     {Name: "Telstra", CategoryID: CategoryUtilities},
	"vodafone":    {Name: "Vodafone", CategoryID: CategoryUtilities},
	"real estate": {Name: "Real Estate", CategoryID: CategoryHousing},
}

// categoryKeywords backs off to generic words when no merchant matched.
var categoryKeywords = map[string]string{
	"cafe":       CategoryFood,
	"restaurant": CategoryFood,
	"bakery":     CategoryFood,
	"grocery":    CategoryFood,
	"petrol":     CategoryTransport,
	"fuel":       CategoryTransport,
	"parking":    CategoryTransport,
	"taxi":       CategoryTransport,
	"cinema":     CategoryEntertainment,
	"theatre":    CategoryEntertainment,
	"pharmacy":   CategoryHealth,
	"medical":    CategoryHealth,
	"dental":     CategoryHealth,
	"electric":   CategoryUtilities,
	"internet":   CategoryUtilities,
	"rent":       CategoryHousing,
}

var (
	terminalPrefix = regexp.MustCompile(`(?i)^(pos |eftpos |visa |mastercard |amex |paypal \*)`)
	legalSuffix    = regexp.MustCompile(`(?i)\s+(pty|ltd|inc|corp|llc|au|us|uk|nz)\.?$`)
	storeNumbers   = regexp.MustCompile(`\d{4,}`)
	junkChars      = regexp.MustCompile(`[*#]+`)
)

var titleCaser = cases.Title(language.English)

// NormalizeMerchant cleans a raw merchant string and recognizes known
// merchants. Unrecognized merchants get a title-cased cleanup of the raw
// string and no category.
func NormalizeMerchant(raw string) MerchantInfo {
	cleaned := clean(raw)
	lower := strings.ToLower(cleaned)

	// Longest keyword wins, so "uber eats" is never mistaken for "uber".
	var best string
	for key := range knownMerchants {
		if strings.Contains(lower, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return knownMerchants[best]
	}
	for keyword, categoryID := range categoryKeywords {
		if strings.Contains(lower, keyword) {
			return MerchantInfo{Name: displayName(cleaned), CategoryID: categoryID}
		}
	}
	return MerchantInfo{Name: displayName(cleaned)}
}

func clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = terminalPrefix.ReplaceAllString(s, "")
	s = legalSuffix.ReplaceAllString(s, "")
	s = storeNumbers.ReplaceAllString(s, "")
	s = junkChars.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// displayName title-cases each word, keeping short tokens (likely acronyms)
// upper-cased.
func displayName(cleaned string) string {
	words := strings.Fields(cleaned)
	for i, word := range words {
		if len(word) > 2 {
			words[i] = titleCaser.String(strings.ToLower(word))
		} else {
			words[i] = strings.ToUpper(word)
		}
	}
	name := strings.Join(words, " ")
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}
