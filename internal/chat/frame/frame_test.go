package frame

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Frame
	}{
		{name: "sentinel", raw: "[DONE]", want: Terminate()},
		{name: "sentinel padded", raw: "  [DONE]\n", want: Terminate()},
		{name: "empty", raw: "", want: Terminate()},
		{name: "whitespace", raw: "   ", want: Token("   ")},
		{name: "newline", raw: "\n", want: Token("\n")},
		{name: "tab", raw: "\t", want: Token("\t")},
		{name: "plain text", raw: "Hello there", want: Token("Hello there")},
		{name: "plain text keeps spacing", raw: " lo ", want: Token(" lo ")},
		{name: "broken json", raw: `{"event":"token","token":"Hel`, want: Token(`{"event":"token","token":"Hel`)},
		{name: "choices delta", raw: `{"choices":[{"delta":{"content":"Hi"}}]}`, want: Token("Hi")},
		{name: "choices delta with finish", raw: `{"choices":[{"delta":{"content":"!"},"finish_reason":"stop"}]}`, want: Frame{Kind: KindToken, Text: "!", Final: true}},
		{name: "choices finish only", raw: `{"choices":[{"delta":{},"finish_reason":"stop"}]}`, want: Terminate()},
		{name: "choices null finish", raw: `{"choices":[{"delta":{"content":"a"},"finish_reason":null}]}`, want: Token("a")},
		{name: "choices empty delta", raw: `{"choices":[{"delta":{"role":"assistant"}}]}`, want: Ignore()},
		{name: "choices empty list", raw: `{"choices":[]}`, want: Ignore()},
		{name: "choices text field", raw: `{"choices":[{"text":"legacy"}]}`, want: Token("legacy")},
		{name: "choices message content", raw: `{"choices":[{"message":{"content":"whole"},"finish_reason":"stop"}]}`, want: Frame{Kind: KindToken, Text: "whole", Final: true}},
		{name: "choices first only", raw: `{"choices":[{"delta":{"content":"a"}},{"delta":{"content":"b"}}]}`, want: Token("a")},
		{name: "token event", raw: `{"event":"token","token":"Hel"}`, want: Token("Hel")},
		{name: "token type tag", raw: `{"type":"token","token":"lo"}`, want: Token("lo")},
		{name: "token event non string", raw: `{"event":"token","token":5}`, want: Ignore()},
		{name: "text field", raw: `{"text":"chunk"}`, want: Token("chunk")},
		{name: "end event", raw: `{"event":"end"}`, want: Terminate()},
		{name: "end type tag", raw: `{"type":"end"}`, want: Terminate()},
		{name: "unknown object", raw: `{"event":"ping"}`, want: Ignore()},
		{name: "number", raw: `42`, want: Ignore()},
		{name: "json string", raw: `"quoted"`, want: Ignore()},
		{name: "null", raw: `null`, want: Ignore()},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Classify([]byte(tt.raw))
			if got != tt.want {
				t.Fatalf("Classify(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestClassifyTokenTextExact(t *testing.T) {
	inputs := []string{"", " ", "é", "line\nbreak", `"quotes"`, "\\u0041", "emoji 🚀"}
	for _, text := range inputs {
		shapes := map[string]map[string]any{
			"choices": {"choices": []any{map[string]any{"delta": map[string]any{"content": text}}}},
			"event":   {"event": "token", "token": text},
			"text":    {"text": text},
		}
		for shape, payload := range shapes {
			raw := mustJSON(t, payload)
			got := Classify(raw)
			if shape == "choices" && text == "" {
				if got.Kind != KindIgnore {
					t.Fatalf("empty delta should be ignored, got %+v", got)
				}
				continue
			}
			if got.Kind != KindToken || got.Text != text {
				t.Fatalf("%s shape: Classify(%s) = %+v, want token %q", shape, raw, got, text)
			}
		}
	}
}

func TestClassifyNonJSONIsLiteral(t *testing.T) {
	inputs := []string{"abc", "{", "}{", "[1,2", "not json at all", "<html>", "data: hi"}
	for _, raw := range inputs {
		got := Classify([]byte(raw))
		if got.Kind != KindToken || got.Text != raw {
			t.Fatalf("Classify(%q) = %+v, want literal token", raw, got)
		}
	}
}

func TestFrameTerminates(t *testing.T) {
	if Token("x").Terminates() {
		t.Fatalf("plain token should not terminate")
	}
	if !(Frame{Kind: KindToken, Text: "x", Final: true}).Terminates() {
		t.Fatalf("final token should terminate")
	}
	if !Terminate().Terminates() {
		t.Fatalf("terminate should terminate")
	}
	if Ignore().Terminates() {
		t.Fatalf("ignore should not terminate")
	}
}
