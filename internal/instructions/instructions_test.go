package instructions_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hbcai/internal/instructions"
	"hbcai/internal/mask"
	"hbcai/internal/model"
	"hbcai/internal/parsoid"
	"hbcai/internal/wiki/wikitest"
)

const (
	optIn       = "User:HBC Archive Indexerbot/OptIn"
	defaultTmpl = "User:HBC Archive Indexerbot/default template"
)

var opts = instructions.Options{OptInTemplate: optIn, DefaultTemplate: defaultTmpl}

func parse(t *testing.T, params map[string]string) (instructions.Instructions, error) {
	t.Helper()
	doc, err := parsoid.ParseString("Talk:X", wikitest.OptInHTML(optIn, params, ""))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return instructions.Parse(doc, opts)
}

func mustParse(t *testing.T, params map[string]string) instructions.Instructions {
	t.Helper()
	in, err := parse(t, params)
	if err != nil {
		t.Fatalf("parse instructions: %v", err)
	}
	return in
}

func TestParse_Defaults(t *testing.T) {
	in := mustParse(t, map[string]string{})
	want := instructions.Instructions{
		Origin:   "Talk:X",
		Target:   "Talk:X/Archive index",
		Masks:    []mask.Mask{mask.NewNumerical("Talk:X/Archive <#>", 0)},
		Template: defaultTmpl,
	}
	if diff := cmp.Diff(want, in); diff != "" {
		t.Fatalf("instructions (-want +got):\n%s", diff)
	}
	if !in.UsesDefaultTemplate(defaultTmpl) {
		t.Fatalf("expected default template")
	}
}

func TestParse_IndexHereAfterDefaultMask(t *testing.T) {
	in := mustParse(t, map[string]string{"indexhere": "<YES>"})
	want := []mask.Mask{
		mask.NewNumerical("Talk:X/Archive <#>", 0),
		mask.NewSinglePage("Talk:X"),
	}
	if diff := cmp.Diff(want, in.Masks); diff != "" {
		t.Fatalf("masks (-want +got):\n%s", diff)
	}
}

func TestParse_MaskListGapFree(t *testing.T) {
	in := mustParse(t, map[string]string{
		"mask":          "/Archive <#",
		"mask1":         "Talk:X/Old",
		"mask2":         "/Archive <month> <year>",
		"mask4":         "ignored",
		"leading_zeros": "2",
		"first_archive": "/Archive May 2010",
		"target":        "Wikipedia:Index of X",
		"template":      "User:Me/tmpl",
	})
	want := []mask.Mask{
		mask.NewNumerical("Talk:X/Archive <#>", 2),
		mask.NewSinglePage("Talk:X/Old"),
		mask.NewMonthly("Talk:X/Archive <month> <year>", "Talk:X/Archive May 2010"),
	}
	if diff := cmp.Diff(want, in.Masks); diff != "" {
		t.Fatalf("masks (-want +got):\n%s", diff)
	}
	if in.Target != "Wikipedia:Index of X" || in.Template != "User:Me/tmpl" {
		t.Fatalf("target/template: %q %q", in.Target, in.Template)
	}
}

func TestParse_TemplateSentinels(t *testing.T) {
	for _, v := range []string{"", "template location", defaultTmpl} {
		in := mustParse(t, map[string]string{"template": v})
		if !in.UsesDefaultTemplate(defaultTmpl) {
			t.Fatalf("template=%q should map to default, got %q", v, in.Template)
		}
	}
}

func TestParse_LeadingZerosFallback(t *testing.T) {
	in := mustParse(t, map[string]string{"mask": "/Archive <#>", "leading_zeros": "many"})
	if in.Masks[0].LeadingZeros != 0 {
		t.Fatalf("leading zeros = %d", in.Masks[0].LeadingZeros)
	}
}

func TestParse_ConfigErrors(t *testing.T) {
	cases := []map[string]string{
		{"mask": "/Archive <year>"},
		{"mask": "/Archive <foo>"},
		{"mask": "/Archive <month>"},
		{"mask": "/Archive <month> <year>", "first_archive": "Talk:X/Archive 3"},
	}
	for _, params := range cases {
		_, err := parse(t, params)
		if !errors.Is(err, model.ErrConfig) {
			t.Fatalf("%v: expected config error, got %v", params, err)
		}
	}
}

func TestParse_MissingConfiguration(t *testing.T) {
	doc, _ := parsoid.ParseString("Talk:X", wikitest.OptInHTML("Template:Archives", nil, ""))
	_, err := instructions.Parse(doc, opts)
	if !errors.Is(err, model.ErrMissingConfig) || !errors.Is(err, model.ErrConfig) {
		t.Fatalf("expected missing config, got %v", err)
	}
}

func TestHelpers(t *testing.T) {
	if !instructions.IsYes("yes") || !instructions.IsYes("<yes>") || instructions.IsYes("no") || instructions.IsYes("<no>") {
		t.Fatalf("IsYes mismatch")
	}
	if got := instructions.Prefix("/Index", "Title"); got != "Title/Index" {
		t.Fatalf("Prefix = %q", got)
	}
	if got := instructions.Prefix("Foo index", "Title"); got != "Foo index" {
		t.Fatalf("Prefix = %q", got)
	}
}
