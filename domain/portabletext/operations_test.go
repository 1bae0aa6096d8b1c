package portabletext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc() []Block {
	title := NewTextBlock(StyleH1, NewSpan("Title"))
	title.Key = "b1"
	title.Children[0].Key = "s1"
	body := NewTextBlock(StyleNormal, NewSpan("hello"))
	body.Key = "b2"
	body.Children[0].Key = "s2"
	return []Block{title, body}
}

func TestApplyInsertUpdateDeleteMove(t *testing.T) {
	inserted := NewTextBlock(StyleNormal, NewSpan("middle"))

	tests := []struct {
		name      string
		ops       []Operation
		wantTexts []string
		wantOK    []bool
	}{
		{
			name:      "insert in the middle",
			ops:       []Operation{{Type: OpInsert, Index: 1, Block: &inserted}},
			wantTexts: []string{"Title", "middle", "hello"},
			wantOK:    []bool{true},
		},
		{
			name:      "insert at end",
			ops:       []Operation{{Type: OpInsert, Index: 2, Block: &inserted}},
			wantTexts: []string{"Title", "hello", "middle"},
			wantOK:    []bool{true},
		},
		{
			name:      "insert out of range fails, batch continues",
			ops:       []Operation{{Type: OpInsert, Index: 5, Block: &inserted}, {Type: OpDelete, Index: 0}},
			wantTexts: []string{"hello"},
			wantOK:    []bool{false, true},
		},
		{
			name: "update replaces block",
			ops: func() []Operation {
				b := NewTextBlock(StyleH2, NewSpan("New Title"))
				return []Operation{{Type: OpUpdate, Index: 0, Block: &b}}
			}(),
			wantTexts: []string{"New Title", "hello"},
			wantOK:    []bool{true},
		},
		{
			name:      "delete",
			ops:       []Operation{{Type: OpDelete, Index: 1}},
			wantTexts: []string{"Title"},
			wantOK:    []bool{true},
		},
		{
			name:      "move swaps order",
			ops:       []Operation{{Type: OpMove, From: 0, To: 1}},
			wantTexts: []string{"hello", "Title"},
			wantOK:    []bool{true},
		},
		{
			name:      "unknown operation fails",
			ops:       []Operation{{Type: OperationType("explode")}},
			wantTexts: []string{"Title", "hello"},
			wantOK:    []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, results := Apply(doc(), tt.ops)

			require.Len(t, results, len(tt.wantOK))
			for i, ok := range tt.wantOK {
				assert.Equal(t, ok, results[i].Success, "result %d", i)
				assert.Equal(t, i, results[i].OperationIndex)
				assert.NotEmpty(t, results[i].Message)
			}

			texts := make([]string, len(out))
			for i, b := range out {
				texts[i] = b.PlainText()
			}
			assert.Equal(t, tt.wantTexts, texts)
		})
	}
}

func TestApplyReplaceSpanText(t *testing.T) {
	tests := []struct {
		name     string
		op       Operation
		wantText string
		wantOK   bool
	}{
		{
			name:     "literal replace",
			op:       Operation{Type: OpReplaceSpanText, BlockKey: "b2", SpanKey: "s2", Search: "hello", Replace: "world"},
			wantText: "world",
			wantOK:   true,
		},
		{
			name:     "replacement equal to original still matches",
			op:       Operation{Type: OpReplaceSpanText, BlockKey: "b2", SpanKey: "s2", Search: "hello", Replace: "hello"},
			wantText: "hello",
			wantOK:   true,
		},
		{
			name:     "regex replace",
			op:       Operation{Type: OpReplaceSpanText, BlockKey: "b2", SpanKey: "s2", Search: "h.llo", Replace: "world", Regex: true},
			wantText: "world",
			wantOK:   true,
		},
		{
			name:     "search text not found",
			op:       Operation{Type: OpReplaceSpanText, BlockKey: "b2", SpanKey: "s2", Search: "absent", Replace: "x"},
			wantText: "hello",
			wantOK:   false,
		},
		{
			name:     "invalid regex",
			op:       Operation{Type: OpReplaceSpanText, BlockKey: "b2", SpanKey: "s2", Search: "(", Replace: "x", Regex: true},
			wantText: "hello",
			wantOK:   false,
		},
		{
			name:     "unknown block key",
			op:       Operation{Type: OpReplaceSpanText, BlockKey: "nope", SpanKey: "s2", Search: "hello", Replace: "x"},
			wantText: "hello",
			wantOK:   false,
		},
		{
			name:     "unknown span key",
			op:       Operation{Type: OpReplaceSpanText, BlockKey: "b2", SpanKey: "nope", Search: "hello", Replace: "x"},
			wantText: "hello",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, results := Apply(doc(), []Operation{tt.op})
			require.Len(t, results, 1)
			assert.Equal(t, tt.wantOK, results[0].Success)
			assert.Equal(t, tt.wantText, out[1].Children[0].Text)
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	input := doc()
	ops := []Operation{
		{Type: OpDelete, Index: 0},
		{Type: OpReplaceSpanText, BlockKey: "b2", SpanKey: "s2", Search: "hello", Replace: "world"},
	}

	out, results := Apply(input, ops)

	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Len(t, out, 1)
	assert.Equal(t, "world", out[0].Children[0].Text)

	// The input document is untouched.
	require.Len(t, input, 2)
	assert.Equal(t, "Title", input[0].PlainText())
	assert.Equal(t, "hello", input[1].PlainText())
}

func TestApplyEmptyBatch(t *testing.T) {
	out, results := Apply(doc(), nil)
	assert.Empty(t, results)
	assert.Len(t, out, 2)
}

func TestApplyNormalizesInsertedBlocks(t *testing.T) {
	raw := Block{Children: []Span{{Text: "loose"}}}
	out, results := Apply(nil, []Operation{{Type: OpInsert, Index: 0, Block: &raw}})

	require.True(t, results[0].Success)
	require.Len(t, out, 1)
	assert.Equal(t, TypeBlock, out[0].Type)
	assert.Equal(t, StyleNormal, out[0].Style)
	assert.NotEmpty(t, out[0].Key)
	assert.NotEmpty(t, out[0].Children[0].Key)
	assert.Equal(t, "span", out[0].Children[0].Type)
}
