package report

import (
	"fmt"
	"strconv"
	"strings"

	"hbcai/internal/instructions"
	"hbcai/internal/thread"
)

// Summary 为报告中说明来源页与掩码的一行。
func Summary(in instructions.Instructions) string {
	masks := make([]string, 0, len(in.Masks))
	for _, m := range in.Masks {
		masks = append(masks, m.String())
	}
	return fmt.Sprintf("Report generated based on a request from [[%s]]. It matches the following masks: %s.<br>",
		in.Origin, strings.Join(masks, ", "))
}

// Row 将一个讨论串代入行片段。一次扫描完成替换，
// 话题文本中出现的 %%token%% 不会被二次替换；未知标记原样保留。
func Row(fragment string, th thread.Thread) string {
	r := strings.NewReplacer(
		"%%topic%%", th.Topic,
		"%%replies%%", strconv.Itoa(th.Replies),
		"%%link%%", th.Link,
		"%%firstepoch%%", strconv.FormatInt(th.FirstEpoch(), 10),
		"%%first%%", th.FirstText(),
		"%%lastepoch%%", strconv.FormatInt(th.LastEpoch(), 10),
		"%%last%%", th.LastText(),
		"%%durationsecs%%", strconv.FormatInt(th.DurationSecs(), 10),
		"%%duration%%", th.Duration(),
	)
	return r.Replace(fragment)
}

// Render 生成完整报告文本。相同输入总是得到逐字节相同的输出。
func (t *Template) Render(threads []thread.Thread, in instructions.Instructions) string {
	lines := make([]string, 0, len(threads)+7)
	lines = append(lines, BlankMarker, t.Lead, Summary(in), LastEditedBy, t.Header)
	for i, th := range threads {
		lines = append(lines, Row(t.rowFor(i), th))
	}
	lines = append(lines, t.Footer, t.Tail)
	return strings.Join(lines, "\n")
}
