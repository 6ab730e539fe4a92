// 包 instructions 解析讨论页上的配置模板调用，得到该页的索引指令：
// 目标页、有序掩码列表、渲染模板。
package instructions

import (
	"strconv"
	"strings"

	"hbcai/internal/mask"
	"hbcai/internal/model"
	"hbcai/internal/parsoid"
)

const (
	// PlaceholderTemplate 为说明文档里示例值，用户照抄时视为默认模板。
	PlaceholderTemplate = "template location"
	defaultTarget       = "/Archive index"
	defaultMask         = "/Archive <#>"
)

// Instructions 为一个来源页的完整配置，构造后只读。
type Instructions struct {
	Origin   string
	Target   string
	Masks    []mask.Mask
	Template string
}

// Options 为站点相关的名称。
type Options struct {
	OptInTemplate   string
	DefaultTemplate string
}

// UsesDefaultTemplate 报告是否使用站点默认模板。
func (in Instructions) UsesDefaultTemplate(defaultTemplate string) bool {
	return in.Template == "" || parsoid.NormalizeTitle(in.Template) == parsoid.NormalizeTitle(defaultTemplate)
}

// Parse 在文档中查找配置模板并解析参数。
func Parse(doc *parsoid.Document, opts Options) (Instructions, error) {
	origin := doc.Title
	tpl, ok := doc.FindTemplate(opts.OptInTemplate)
	if !ok {
		return Instructions{}, &model.ConfigError{Page: origin, Reason: model.ErrMissingConfig.Error(), Err: model.ErrMissingConfig}
	}
	var masks []mask.Mask
	if v, ok := nonEmpty(tpl, "mask"); ok {
		m, err := parseMask(v, origin, tpl)
		if err != nil {
			return Instructions{}, err
		}
		masks = append(masks, m)
	}
	for i := 1; ; i++ {
		v, ok := nonEmpty(tpl, "mask"+strconv.Itoa(i))
		if !ok {
			break
		}
		m, err := parseMask(v, origin, tpl)
		if err != nil {
			return Instructions{}, err
		}
		masks = append(masks, m)
	}
	if len(masks) == 0 {
		masks = append(masks, mask.NewNumerical(Prefix(defaultMask, origin), 0))
	}
	// indexhere 必须在默认掩码之后追加
	if v, _ := tpl.Param("indexhere"); IsYes(v) {
		masks = append(masks, mask.NewSinglePage(origin))
	}

	target := Prefix(defaultTarget, origin)
	if v, ok := nonEmpty(tpl, "target"); ok {
		target = Prefix(v, origin)
	}
	template := opts.DefaultTemplate
	if v, ok := nonEmpty(tpl, "template"); ok && v != PlaceholderTemplate {
		template = v
	}
	return Instructions{Origin: origin, Target: target, Masks: masks, Template: template}, nil
}

func nonEmpty(t parsoid.Transclusion, name string) (string, bool) {
	v, ok := t.Param(name)
	return v, ok && v != ""
}

// IsYes 兼容用户写成 |indexhere=<yes> 的情况。
func IsYes(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "<yes>":
		return true
	}
	return false
}

// Prefix 将以 / 开头的值解析为来源页的子页面。
func Prefix(value, origin string) string {
	if strings.HasPrefix(value, "/") {
		return origin + value
	}
	return value
}

func parseLeadingZeros(t parsoid.Transclusion) int {
	v, ok := t.Param("leading_zeros")
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 31)
	if err != nil {
		return 0
	}
	return int(n)
}

// parseMask 按词法特征分类，先匹配先得。
func parseMask(value, origin string, t parsoid.Transclusion) (mask.Mask, error) {
	switch {
	case strings.Contains(value, mask.PlaceholderNumber):
		return mask.NewNumerical(Prefix(value, origin), parseLeadingZeros(t)), nil
	case strings.HasSuffix(value, "<#"):
		// 常见笔误：漏掉结尾的 >
		return mask.NewNumerical(Prefix(value+">", origin), parseLeadingZeros(t)), nil
	case strings.Contains(value, mask.PlaceholderYear):
		first, ok := nonEmpty(t, "first_archive")
		if !ok {
			return mask.Mask{}, model.NewConfigError(origin, "Missing |first_archive=")
		}
		pattern, first := Prefix(value, origin), Prefix(first, origin)
		m := mask.NewYearly(pattern, first)
		if strings.Contains(value, mask.PlaceholderMonth) {
			m = mask.NewMonthly(pattern, first)
		}
		if _, _, err := mask.Seed(m); err != nil {
			return mask.Mask{}, model.NewConfigError(origin, "%v", err)
		}
		return m, nil
	case !strings.Contains(value, "<"):
		return mask.NewSinglePage(Prefix(value, origin)), nil
	default:
		return mask.Mask{}, model.NewConfigError(origin, "Unrecognized |mask= value: <nowiki>%s</nowiki>", value)
	}
}
