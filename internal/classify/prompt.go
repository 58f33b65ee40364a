package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yutingko/teascout/internal/config"
	"github.com/yutingko/teascout/internal/types"
)

// BuildPrompt renders the classification instructions for one batch. The
// model must answer with a bare JSON array; everything else in the prompt
// exists to make that contract and the label set unambiguous.
func BuildPrompt(cfg config.ClassifyConfig, stores []types.Store) (string, error) {
	data, err := json.Marshal(stores)
	if err != nil {
		return "", fmt.Errorf("marshal stores for prompt: %w", err)
	}

	var b strings.Builder
	b.WriteString("你是一個台灣外送平台的店家分類助手。以下是一批店家資料(JSON 陣列)。\n\n")

	b.WriteString("請將每個店家分類為以下其中一個類別:\n")
	for _, label := range cfg.Labels {
		fmt.Fprintf(&b, "- %s\n", label)
	}

	b.WriteString("\n規則:\n")
	if len(cfg.ExcludedStoreTypes) > 0 {
		fmt.Fprintf(&b, "1. 直接剔除以下類型的店家,不要出現在輸出中:%s。\n",
			strings.Join(cfg.ExcludedStoreTypes, "、"))
	}
	if cfg.PriceCeiling > 0 {
		fmt.Fprintf(&b, "2. 剔除平均價格(avg_price)超過 %d 元的店家。\n", cfg.PriceCeiling)
	}
	b.WriteString("3. highlights 填入該店家最具代表性的 1 到 3 個品項名稱,沒有菜單資料時留空陣列。\n")

	b.WriteString("\n輸出格式:只輸出一個 JSON 陣列,不要加任何說明文字或 markdown 代碼框。")
	b.WriteString("每個元素的格式為:\n")
	b.WriteString(`{"name": "...", "category": "...", "url": "...", "avg_price": 0, "highlights": []}`)
	b.WriteString("\n\n店家資料:\n")
	b.Write(data)

	return b.String(), nil
}

// StripFences removes a markdown code fence wrapper from a model response.
// Models add them despite instructions, so parsing always goes through here.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
