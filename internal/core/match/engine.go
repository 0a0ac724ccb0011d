package match

import (
	"sort"

	"bar-inventory-api/internal/core/catalog"
)

// Tier 配方分級
type Tier string

const (
	TierReady       Tier = "ready"        // 缺 0 項必要食材
	TierAlmostThere Tier = "almost_there" // 缺 1..MaxMissingForAlmost 項
	TierFar         Tier = "far"          // 其餘
)

// Options 分級參數。門檻與權重是產品調校值，由設定注入
type Options struct {
	MaxMissingForAlmost int
	OptionalWeight      float64
	NameFor             func(id string) string // 缺少食材的顯示名稱查找
}

// DefaultOptions 預設分級參數
func DefaultOptions() Options {
	return Options{
		MaxMissingForAlmost: 2,
		OptionalWeight:      0.01,
	}
}

// Match 單一配方的分級結果
type Match struct {
	Recipe                 catalog.Recipe `json:"recipe"`
	MissingIngredientIDs   []string       `json:"missing_ingredient_ids"`
	MissingIngredientNames []string       `json:"missing_ingredient_names"`
	Score                  float64        `json:"score"` // 僅用於同級內排序
}

// Result 分級結果。Excluded 記錄因無效資料被排除的配方數，
// 保證 ready+almost_there+far 等於有效配方總數
type Result struct {
	Ready       []Match `json:"ready"`
	AlmostThere []Match `json:"almost_there"`
	Far         []Match `json:"far"`
	Excluded    int     `json:"excluded"`
}

// Classify 將每份配方對使用者持有集與常備品集分級。
// 純函數：不做 I/O、不重新解析識別碼（解析是 Resolver 的職責，
// 未知識別碼按字面比對，持有完全相同的原始識別碼仍算滿足）。
func Classify(recipes []catalog.Recipe, owned, staples map[string]bool, opts Options) Result {
	if opts.MaxMissingForAlmost <= 0 {
		opts.MaxMissingForAlmost = DefaultOptions().MaxMissingForAlmost
	}
	if opts.OptionalWeight <= 0 {
		opts.OptionalWeight = DefaultOptions().OptionalWeight
	}

	var result Result

	for _, recipe := range recipes {
		// 沒有任何食材行的配方是無效資料：排除並計數，絕不讓它顯示為可調製
		if !recipe.Valid() {
			result.Excluded++
			continue
		}

		satisfiedRequired := 0
		unsatisfiedOptional := 0
		var missing []string

		for _, line := range recipe.Ingredients {
			satisfied := owned[line.IngredientID] || staples[line.IngredientID]
			if line.IsOptional {
				if !satisfied {
					unsatisfiedOptional++
				}
				continue
			}
			if satisfied {
				satisfiedRequired++
			} else {
				missing = append(missing, line.IngredientID)
			}
		}

		m := Match{
			Recipe:                 recipe,
			MissingIngredientIDs:   missing,
			MissingIngredientNames: resolveNames(missing, opts.NameFor),
			Score:                  float64(satisfiedRequired) - opts.OptionalWeight*float64(unsatisfiedOptional),
		}

		switch {
		case len(missing) == 0:
			result.Ready = append(result.Ready, m)
		case len(missing) <= opts.MaxMissingForAlmost:
			result.AlmostThere = append(result.AlmostThere, m)
		default:
			result.Far = append(result.Far, m)
		}
	}

	sortTier(result.Ready)
	sortTier(result.AlmostThere)
	sortTier(result.Far)

	return result
}

// sortTier 同級內分數高者優先，同分以配方名稱遞增決定，排序穩定可重現
func sortTier(tier []Match) {
	sort.SliceStable(tier, func(i, j int) bool {
		if tier[i].Score != tier[j].Score {
			return tier[i].Score > tier[j].Score
		}
		return tier[i].Recipe.Name < tier[j].Recipe.Name
	})
}

func resolveNames(ids []string, nameFor func(string) string) []string {
	if len(ids) == 0 {
		return nil
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		if nameFor != nil {
			names[i] = nameFor(id)
		} else {
			names[i] = id
		}
	}
	return names
}
