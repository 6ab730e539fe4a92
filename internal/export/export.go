// 包 export 负责运行报告导出：JSON 报告文件与维基格式的失败日志。
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"hbcai/internal/model"
	"hbcai/internal/store"
)

// ToJSON 查询指定一轮的结果并写入 JSON 文件（带缩进格式）。
func ToJSON(ctx context.Context, s *store.SQLite, runID, path string) error {
	results, err := s.ListResults(ctx, runID)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}
	return writeJSON(path, model.Export{RunID: runID, Stats: model.Summarize(results), Pages: results})
}

func writeJSON(path string, out model.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}

// FailureLog 将失败结果渲染为维基列表，每行 "* <错误>"；没有失败时返回空串。
// 错误文本本身已带 [[来源页]] 前缀时不再重复。
func FailureLog(results []model.PageResult) string {
	var lines []string
	for _, r := range results {
		if r.Status != model.StatusFailed {
			continue
		}
		msg := r.Error
		if !strings.HasPrefix(msg, "[[") {
			msg = fmt.Sprintf("[[%s]]: %s", r.Origin, msg)
		}
		lines = append(lines, "* "+msg)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
