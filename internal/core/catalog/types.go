package catalog

// Category 食材分類
type Category string

const (
	CategorySpirit  Category = "spirit"
	CategoryLiqueur Category = "liqueur"
	CategoryWine    Category = "wine"
	CategoryBeer    Category = "beer"
	CategoryMixer   Category = "mixer"
	CategoryCitrus  Category = "citrus"
	CategoryBitters Category = "bitters"
	CategorySyrup   Category = "syrup"
	CategoryGarnish Category = "garnish"
	CategoryOther   Category = "other"
)

// Ingredient 食材（由外部目錄服務維護，核心視為唯讀）
type Ingredient struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	IsStaple    bool     `json:"is_staple"`              // 常備品（冰、水等），不阻擋配方就緒
	LegacyCodes []string `json:"legacy_codes,omitempty"` // 歷史數字代碼
}

// RecipeIngredientLine 配方中的一行食材
type RecipeIngredientLine struct {
	IngredientID string `json:"ingredient_id"`
	IsOptional   bool   `json:"is_optional"`
}

// Recipe 配方
type Recipe struct {
	ID          string                 `json:"id"`
	Slug        string                 `json:"slug"`
	Name        string                 `json:"name"`
	Ingredients []RecipeIngredientLine `json:"ingredients"`
}

// Valid 配方沒有任何食材行時視為無效資料
func (r Recipe) Valid() bool {
	return len(r.Ingredients) > 0
}
