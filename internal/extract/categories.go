package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Category is one candidate classification target for a receipt.
type Category struct {
	ID       int      `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Type     string   `yaml:"type" json:"type"` // "income" or "expense"
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// DefaultCategories mirror the tracker's seeded category set.
var DefaultCategories = []Category{
	{ID: 1, Name: "Food & Dining", Type: "expense", Keywords: []string{
		"restaurant", "cafe", "pizza", "burger", "food", "lunch", "dinner",
		"breakfast", "coffee", "bar", "diner"}},
	{ID: 2, Name: "Transportation", Type: "expense", Keywords: []string{
		"uber", "lyft", "taxi", "gas", "fuel", "parking", "transit", "metro",
		"bus", "train", "airline"}},
	{ID: 3, Name: "Shopping", Type: "expense", Keywords: []string{
		"store", "shop", "mall", "amazon", "target", "walmart", "clothes",
		"apparel", "retail"}},
	{ID: 4, Name: "Bills", Type: "expense", Keywords: []string{
		"utility", "electric", "water", "internet", "phone", "rent",
		"mortgage", "insurance", "subscription"}},
	{ID: 5, Name: "Other Expense", Type: "expense"},
	{ID: 6, Name: "Salary", Type: "income", Keywords: []string{
		"salary", "wage", "paycheck", "deposit"}},
	{ID: 7, Name: "Freelance", Type: "income", Keywords: []string{
		"freelance", "invoice", "payment", "transferred"}},
	{ID: 8, Name: "Other Income", Type: "income"},
}

// fallbackCategoryID is used when no keyword scores at all.
const fallbackCategoryID = 5 // Other Expense

// LoadCategories reads a category definition file. Missing path means the
// defaults apply.
func LoadCategories(path string) ([]Category, error) {
	if path == "" {
		return DefaultCategories, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read categories %s", path)
	}
	var cats []Category
	if err := yaml.Unmarshal(data, &cats); err != nil {
		return nil, eris.Wrapf(err, "extract: parse categories %s", path)
	}
	if len(cats) == 0 {
		return nil, eris.Errorf("extract: categories file %s is empty", path)
	}
	return cats, nil
}

// Categorization is the heuristic category decision for a receipt.
type Categorization struct {
	CategoryID int
	Matches    int
	Confidence int
	Reasoning  string
}

// Confidence policy: a correctly isolated merchant line is worth more than
// keyword noise, and each additional keyword match adds a flat bonus at the
// 1, 2 and 3+ levels. Pattern matching never claims full certainty.
const (
	confBaseMerchant   = 30
	confBaseNoMerchant = 10
	confCap            = 95
)

var matchBonus = map[int]int{0: 0, 1: 20, 2: 35}

// Categorize scores each candidate category by keyword overlap with the OCR
// text and merchant line, returning the best match with its confidence.
func Categorize(text, merchant string, cats []Category) Categorization {
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	haystack := strings.ToLower(text + " " + merchant)

	bestID, bestScore := 0, -1
	for _, cat := range cats {
		score := 0
		for _, kw := range cat.Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestID = cat.ID
		}
	}

	if bestScore <= 0 {
		return Categorization{
			CategoryID: fallbackCategoryID,
			Confidence: baseConfidence(merchant),
			Reasoning:  "no category keywords matched",
		}
	}

	conf := baseConfidence(merchant) + bonusFor(bestScore)
	if conf > confCap {
		conf = confCap
	}
	return Categorization{
		CategoryID: bestID,
		Matches:    bestScore,
		Confidence: conf,
		Reasoning:  fmt.Sprintf("matched %d category keywords", bestScore),
	}
}

func baseConfidence(merchant string) int {
	if merchant != "" && merchant != UnknownMerchant {
		return confBaseMerchant
	}
	return confBaseNoMerchant
}

func bonusFor(matches int) int {
	if matches >= 3 {
		return 45
	}
	return matchBonus[matches]
}
