package portabletext

import (
	"fmt"
	"regexp"
	"strings"
)

// OperationType tags an edit operation.
type OperationType string

const (
	OpInsert          OperationType = "insert"
	OpUpdate          OperationType = "update"
	OpDelete          OperationType = "delete"
	OpMove            OperationType = "move"
	OpReplaceSpanText OperationType = "replaceSpanText"
)

// Operation is one edit in a batch. The fields used depend on Type:
// insert/update use Index+Block, delete uses Index, move uses From+To,
// replaceSpanText uses BlockKey/SpanKey/Search/Replace (+Regex).
type Operation struct {
	Type OperationType `json:"type"`

	Index int    `json:"index,omitempty"`
	Block *Block `json:"block,omitempty"`

	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`

	BlockKey string `json:"blockKey,omitempty"`
	SpanKey  string `json:"spanKey,omitempty"`
	Search   string `json:"search,omitempty"`
	Replace  string `json:"replace,omitempty"`
	Regex    bool   `json:"regex,omitempty"`
}

// OperationResult reports one operation's outcome, in input order.
type OperationResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	OperationIndex int    `json:"operationIndex"`
}

// Apply runs a batch of operations over a document and returns the new
// document plus one result per operation, in input order. Apply never
// returns an error: a failed operation yields a failed result and the batch
// continues. The input document is not mutated.
func Apply(blocks []Block, ops []Operation) ([]Block, []OperationResult) {
	working := CloneBlocks(blocks)
	results := make([]OperationResult, 0, len(ops))

	for i, op := range ops {
		var err error
		switch op.Type {
		case OpInsert:
			working, err = applyInsert(working, op)
		case OpUpdate:
			working, err = applyUpdate(working, op)
		case OpDelete:
			working, err = applyDelete(working, op)
		case OpMove:
			working, err = applyMove(working, op)
		case OpReplaceSpanText:
			err = applyReplaceSpanText(working, op)
		default:
			err = fmt.Errorf("unknown operation type %q", op.Type)
		}

		result := OperationResult{Success: err == nil, OperationIndex: i}
		if err != nil {
			result.Message = err.Error()
		} else {
			result.Message = fmt.Sprintf("%s succeeded", op.Type)
		}
		results = append(results, result)
	}

	return working, results
}

func applyInsert(blocks []Block, op Operation) ([]Block, error) {
	if op.Block == nil {
		return blocks, fmt.Errorf("insert requires a block")
	}
	if op.Index < 0 || op.Index > len(blocks) {
		return blocks, fmt.Errorf("insert index %d out of range [0,%d]", op.Index, len(blocks))
	}
	b := normalize(op.Block.Clone())
	blocks = append(blocks, Block{})
	copy(blocks[op.Index+1:], blocks[op.Index:])
	blocks[op.Index] = b
	return blocks, nil
}

func applyUpdate(blocks []Block, op Operation) ([]Block, error) {
	if op.Block == nil {
		return blocks, fmt.Errorf("update requires a block")
	}
	if op.Index < 0 || op.Index >= len(blocks) {
		return blocks, fmt.Errorf("update index %d out of range [0,%d)", op.Index, len(blocks))
	}
	b := normalize(op.Block.Clone())
	if b.Key == "" {
		b.Key = blocks[op.Index].Key
	}
	blocks[op.Index] = b
	return blocks, nil
}

func applyDelete(blocks []Block, op Operation) ([]Block, error) {
	if op.Index < 0 || op.Index >= len(blocks) {
		return blocks, fmt.Errorf("delete index %d out of range [0,%d)", op.Index, len(blocks))
	}
	return append(blocks[:op.Index], blocks[op.Index+1:]...), nil
}

func applyMove(blocks []Block, op Operation) ([]Block, error) {
	if op.From < 0 || op.From >= len(blocks) {
		return blocks, fmt.Errorf("move source %d out of range [0,%d)", op.From, len(blocks))
	}
	if op.To < 0 || op.To >= len(blocks) {
		return blocks, fmt.Errorf("move target %d out of range [0,%d)", op.To, len(blocks))
	}
	moved := blocks[op.From]
	blocks = append(blocks[:op.From], blocks[op.From+1:]...)
	blocks = append(blocks, Block{})
	copy(blocks[op.To+1:], blocks[op.To:])
	blocks[op.To] = moved
	return blocks, nil
}

func applyReplaceSpanText(blocks []Block, op Operation) error {
	for bi := range blocks {
		if blocks[bi].Key != op.BlockKey {
			continue
		}
		for si := range blocks[bi].Children {
			if blocks[bi].Children[si].Key != op.SpanKey {
				continue
			}
			text := blocks[bi].Children[si].Text
			replaced, matched, err := replaceText(text, op.Search, op.Replace, op.Regex)
			if err != nil {
				return err
			}
			if !matched {
				return fmt.Errorf("search text %q not found in span %q", op.Search, op.SpanKey)
			}
			blocks[bi].Children[si].Text = replaced
			return nil
		}
		return fmt.Errorf("span %q not found in block %q", op.SpanKey, op.BlockKey)
	}
	return fmt.Errorf("block %q not found", op.BlockKey)
}

func replaceText(text, search, replace string, useRegex bool) (result string, matched bool, err error) {
	if useRegex {
		re, err := regexp.Compile(search)
		if err != nil {
			return "", false, fmt.Errorf("invalid search pattern %q: %v", search, err)
		}
		if !re.MatchString(text) {
			return text, false, nil
		}
		return re.ReplaceAllString(text, replace), true, nil
	}
	if !strings.Contains(text, search) {
		return text, false, nil
	}
	return strings.ReplaceAll(text, search, replace), true, nil
}

// normalize enforces the model invariants on externally supplied blocks.
func normalize(b Block) Block {
	if b.Key == "" {
		b.Key = NewKey()
	}
	if b.Type == "" {
		b.Type = TypeBlock
	}
	if b.Type == TypeBlock {
		if b.Style == "" {
			b.Style = StyleNormal
		}
		if b.Children == nil {
			b.Children = []Span{}
		}
		for i := range b.Children {
			if b.Children[i].Type == "" {
				b.Children[i].Type = "span"
			}
			if b.Children[i].Key == "" {
				b.Children[i].Key = NewKey()
			}
		}
	}
	return b
}
