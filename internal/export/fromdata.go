package export

import (
	"slices"
	"strings"

	"hbcai/internal/model"
)

// ToJSONData 直接将内存中的结果写成 JSON 报告（极简模式不落库时使用）。
func ToJSONData(runID string, results []model.PageResult, path string) error {
	pages := slices.Clone(results)
	slices.SortFunc(pages, func(a, b model.PageResult) int { return strings.Compare(a.Origin, b.Origin) })
	return writeJSON(path, model.Export{RunID: runID, Stats: model.Summarize(pages), Pages: pages})
}
