package catalog

import (
	"regexp"
	"strings"

	"bar-inventory-api/internal/pkg/common"

	"go.uber.org/zap"
)

// 正準識別碼格式：小寫 slug（字母、數字、連字號），至少包含一個字母。
// 純數字是歷史數字代碼，不是正準識別碼。
var (
	canonicalPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	letterPattern    = regexp.MustCompile(`[a-z]`)
)

// legacyPrefix 歷史代碼曾以 "ing-" 前綴出現在客戶端儲存中
const legacyPrefix = "ing-"

// CanonicalIndex 識別碼解析索引，由目錄建立，隨目錄重載重建
type CanonicalIndex struct {
	nameIndex   map[string]string // 小寫名稱 -> 正準識別碼
	legacyIndex map[string]string // 歷史代碼（含前綴形式）-> 正準識別碼
}

// BuildCanonicalIndex 從目錄建立解析索引
func BuildCanonicalIndex(ingredients []Ingredient) *CanonicalIndex {
	idx := &CanonicalIndex{
		nameIndex:   make(map[string]string, len(ingredients)),
		legacyIndex: make(map[string]string),
	}

	for _, ing := range ingredients {
		if ing.ID == "" {
			continue
		}
		if ing.Name != "" {
			idx.nameIndex[strings.ToLower(strings.TrimSpace(ing.Name))] = ing.ID
		}
		for _, code := range ing.LegacyCodes {
			code = strings.ToLower(strings.TrimSpace(code))
			if code == "" {
				continue
			}
			idx.legacyIndex[code] = ing.ID
			// 同一代碼也曾以前綴形式流通
			if !strings.HasPrefix(code, legacyPrefix) {
				idx.legacyIndex[legacyPrefix+code] = ing.ID
			}
		}
	}

	return idx
}

// IsCanonicalID 檢查是否為語法上有效的正準識別碼
func IsCanonicalID(id string) bool {
	return canonicalPattern.MatchString(id) && letterPattern.MatchString(id)
}

// Resolve 將任意年代的識別碼解析為正準識別碼。
// 解析不到時原樣保留，絕不丟棄：不完整的對照表不能讓使用者的食材憑空消失。
// 空白輸入回傳空字串，由呼叫端丟棄。
func (idx *CanonicalIndex) Resolve(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	lowered := strings.ToLower(trimmed)

	// 歷史代碼優先於語法檢查，前綴形式（ing-42）在語法上與 slug 無法區分
	if id, ok := idx.legacyIndex[lowered]; ok {
		return id
	}

	// 已是正準識別碼則原樣通過（大小寫敏感）
	if IsCanonicalID(trimmed) {
		return trimmed
	}

	// 名稱比對不分大小寫
	if id, ok := idx.nameIndex[lowered]; ok {
		return id
	}

	common.LogDebug("識別碼無法解析，原樣保留", zap.String("識別碼", trimmed))
	return trimmed
}

// ResolveMany 逐一解析並去除重複，保留首次出現順序；空白輸入被丟棄
func (idx *CanonicalIndex) ResolveMany(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for _, r := range raw {
		id := idx.Resolve(r)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}

	return out
}
