package helpers

import "testing"

func TestExtractJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"topic":"AI agents"}`,
			want: `{"topic":"AI agents"}`,
		},
		{
			name: "fenced with language tag",
			in:   "```json\n{\"keywords\":[\"fintech\"]}\n```",
			want: `{"keywords":["fintech"]}`,
		},
		{
			name: "prose around the payload",
			in:   "Here is the result:\n{\"post\":\"Draft text\"}\nHope that helps!",
			want: `{"post":"Draft text"}`,
		},
		{
			name: "braces inside strings",
			in:   `{"content":"use {placeholders} like }this{"}`,
			want: `{"content":"use {placeholders} like }this{"}`,
		},
		{
			name: "array payload",
			in:   "```\n[\"a\",\"b\"]\n```",
			want: `["a","b"]`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ExtractJSON() got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONErrors(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "no json here", `{"unterminated": true`} {
		if _, err := ExtractJSON(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
