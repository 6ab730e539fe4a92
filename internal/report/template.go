// 包 report 负责索引模板的编译与渲染。
//
// 模板文档按标记行切分为片段：
//
//	<!-- LEAD --> <!-- HEADER --> <!-- ROW --> <!-- ALT ROW --> <!-- FOOTER --> <!-- TAIL -->
//
// <!-- END --> 之后的内容全部忽略；首个标记之前的行丢弃。
package report

import (
	"strings"
)

// BlankMarker 写在每份报告开头，允许机器人下次覆盖该页。
const BlankMarker = "<!-- HBC Archive Indexerbot can blank this -->"

// LastEditedBy 为报告中固定的最后编辑者模板行。
const LastEditedBy = "{{last edited by}}"

// State 为编译状态机的当前片段。
type State int

const (
	StateNone State = iota
	StateLead
	StateHeader
	StateRow
	StateAltRow
	StateFooter
	StateTail
)

var markers = map[string]State{
	"<!-- LEAD -->":    StateLead,
	"<!-- HEADER -->":  StateHeader,
	"<!-- ROW -->":     StateRow,
	"<!-- ALT ROW -->": StateAltRow,
	"<!-- FOOTER -->":  StateFooter,
	"<!-- TAIL -->":    StateTail,
}

const endMarker = "<!-- END -->"

// Transition 返回读入一行后的新状态；stop 表示遇到 END。
// 非标记行不改变状态。
func Transition(cur State, line string) (next State, marker, stop bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == endMarker {
		return cur, true, true
	}
	if s, ok := markers[trimmed]; ok {
		return s, true, false
	}
	return cur, false, false
}

// Template 为编译后的只读模板，可在多个 goroutine 间共享。
type Template struct {
	Lead   string
	Header string
	Row    string
	AltRow string
	hasAlt bool
	Footer string
	Tail   string
}

// HasAltRow 报告模板是否定义了交替行。
func (t *Template) HasAltRow() bool { return t.hasAlt }

// Compile 将模板 wikitext 编译为 Template。
func Compile(text string) *Template {
	frags := map[State][]string{}
	state := StateNone
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		next, marker, stop := Transition(state, line)
		if stop {
			break
		}
		state = next
		if marker || state == StateNone {
			continue
		}
		frags[state] = append(frags[state], line)
	}
	t := &Template{
		Lead:   strings.Join(frags[StateLead], "\n"),
		Header: strings.Join(frags[StateHeader], "\n"),
		Row:    strings.Join(frags[StateRow], "\n"),
		Footer: strings.Join(frags[StateFooter], "\n"),
		Tail:   strings.Join(frags[StateTail], "\n"),
	}
	if alt := frags[StateAltRow]; len(alt) > 0 {
		t.AltRow = strings.Join(alt, "\n")
		t.hasAlt = true
	}
	return t
}

// rowFor 偶数行用 ROW，奇数行用 ALT ROW（未定义时仍用 ROW）。
func (t *Template) rowFor(i int) string {
	if i%2 == 1 && t.hasAlt {
		return t.AltRow
	}
	return t.Row
}
