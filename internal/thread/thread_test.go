package thread_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"hbcai/internal/parsoid"
	"hbcai/internal/thread"
)

func TestPadNumber_LengthAndRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 99, 100, 12345} {
		for w := 0; w < 6; w++ {
			s := thread.PadNumber(n, w)
			want := max(w+1, len(strconv.Itoa(n)))
			if len(s) != want {
				t.Fatalf("PadNumber(%d,%d)=%q len=%d want=%d", n, w, s, len(s), want)
			}
			back, err := strconv.Atoi(s)
			if err != nil || back != n {
				t.Fatalf("PadNumber(%d,%d)=%q does not parse back", n, w, s)
			}
		}
	}
}

func TestPadNumber_HugeWidth(t *testing.T) {
	for _, w := range []int{999_999, 1_000_000, 2_000_000} {
		s := thread.PadNumber(7, w)
		if len(s) != w+1 {
			t.Fatalf("PadNumber(7,%d) len=%d want=%d", w, len(s), w+1)
		}
		back, err := strconv.Atoi(s)
		if err != nil || back != 7 {
			t.Fatalf("PadNumber(7,%d) does not parse back: %v", w, err)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{
		0:      "0:00:00",
		59:     "0:00:59",
		3661:   "1:01:01",
		86399:  "23:59:59",
		86400:  "1 day, 0:00:00",
		90061:  "1 day, 1:01:01",
		176461: "2 days, 1:01:01",
	}
	for secs, want := range cases {
		if got := thread.FormatDuration(secs); got != want {
			t.Fatalf("FormatDuration(%d)=%q want=%q", secs, got, want)
		}
	}
}

func TestExtract_OrderIndependent(t *testing.T) {
	doc := &parsoid.Document{
		Title: "Talk:X/Archive 1",
		Sections: []parsoid.Section{
			{Level: 0, Text: "lead 10:00, 1 January 2020"},
			{Level: 2, Title: "Topic A", Anchor: "Topic_A", Text: `
				third 09:15, 3 March 2021 (UTC)
				first 08:05, 1 March 2021 (UTC)
				second 23:59:30, 2 March 2021 (UTC)`},
			{Level: 3, Title: "Nested", Anchor: "Nested", Text: "12:00, 4 March 2021"},
			{Level: 2, Title: "Quiet", Anchor: "Quiet", Text: "no signatures"},
		},
	}
	got := thread.Extract(doc)
	want := []thread.Thread{{
		Topic:   "Topic A",
		Replies: 3,
		Link:    "[[Talk:X/Archive 1#Topic A]]",
		First:   time.Date(2021, time.March, 1, 8, 5, 0, 0, time.UTC),
		Last:    time.Date(2021, time.March, 3, 9, 15, 0, 0, time.UTC),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Extract mismatch (-want +got):\n%s", diff)
	}
	th := got[0]
	if th.FirstText() != "08:05, 1 March 2021" || th.LastText() != "09:15, 3 March 2021" {
		t.Fatalf("formatted: %q / %q", th.FirstText(), th.LastText())
	}
	if th.DurationSecs() != th.LastEpoch()-th.FirstEpoch() || th.Duration() != "2 days, 1:10:00" {
		t.Fatalf("duration: %d %q", th.DurationSecs(), th.Duration())
	}
}

func TestExtract_SkipsInvalidTimestamps(t *testing.T) {
	doc := &parsoid.Document{
		Title: "Talk:X",
		Sections: []parsoid.Section{
			{Level: 2, Title: "Bad", Anchor: "Bad", Text: "25:00, 1 May 2020 / 10:00, 30 February 2020 / 10:61, 1 May 2020 / 11:00, 2 May 2020"},
			{Level: 2, Title: "All bad", Anchor: "All_bad", Text: "10:00, 31 April 2020"},
		},
	}
	got := thread.Extract(doc)
	if len(got) != 1 {
		t.Fatalf("threads=%d want=1: %+v", len(got), got)
	}
	if got[0].Replies != 1 || !got[0].First.Equal(time.Date(2020, time.May, 2, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected thread: %+v", got[0])
	}
}

func TestParseMonth(t *testing.T) {
	if m, ok := thread.ParseMonth("December"); !ok || m != time.December {
		t.Fatalf("ParseMonth December = %v %v", m, ok)
	}
	if _, ok := thread.ParseMonth("december"); ok {
		t.Fatalf("month names are case-sensitive")
	}
}
