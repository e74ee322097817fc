package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/configtrail/types"
)

// Document 是一份配置文档：字符串键到标量/嵌套映射的深层映射。
type Document map[string]any

// Parse parses raw YAML bytes into a Document.
// 顶层不是映射（标量、序列、null）时返回 INVALID_DOCUMENT。
func Parse(data []byte) (Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.NewInvalidDocumentError("failed to parse YAML document", err)
	}

	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, types.NewInvalidDocumentError(
			fmt.Sprintf("document top level must be a mapping, got %T", raw), nil)
	}

	return Document(doc), nil
}

// Serialize serializes a Document back to YAML bytes.
func Serialize(doc Document) ([]byte, error) {
	data, err := yaml.Marshal(map[string]any(doc))
	if err != nil {
		return nil, types.NewInvalidDocumentError("failed to serialize document", err)
	}
	return data, nil
}

// Normalize returns a normalized deep copy of doc: every string value that is
// lexically an unsigned integer is replaced by its integer value, recursing
// into nested mappings. Sequences and non-numeric scalars pass through
// unchanged. Pure function: the input document is never mutated.
//
// 归一化必须在任何相等性比较与持久化之前完成，这样相等性针对的是
// 规范数据，而不是来源格式偶然的 string/int 表示差异。
func Normalize(doc Document) Document {
	if doc == nil {
		return nil
	}
	return Document(normalizeValue(map[string]any(doc)).(map[string]any))
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case Document:
		return normalizeValue(map[string]any(val))
	case []any:
		// 序列按原样深拷贝，不做元素归一化
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case string:
		if isUnsignedInteger(val) {
			if n, err := strconv.Atoi(val); err == nil {
				return n
			}
			// 超出 int 范围的数字串保持原样
		}
		return val
	default:
		return val
	}
}

// isUnsignedInteger reports whether s is a non-empty string of ASCII digits.
func isUnsignedInteger(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of doc. The store never aliases a document a
// caller might mutate afterward.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	return Document(cloneValue(map[string]any(doc)).(map[string]any))
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return cloneValue(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Fingerprint returns the canonical content fingerprint of doc: the SHA-256
// hex digest of its canonical JSON encoding. encoding/json sorts map keys,
// so the fingerprint is independent of key order at every mapping level and
// of the int/int64 representation of numeric values.
func Fingerprint(doc Document) (string, error) {
	data, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return "", types.NewInvalidDocumentError("failed to fingerprint document", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Equal reports whether two documents are structurally and value-equal,
// order-independent at each mapping level. Both sides are compared through
// their canonical fingerprints.
func Equal(a, b Document) bool {
	fa, errA := Fingerprint(a)
	fb, errB := Fingerprint(b)
	if errA != nil || errB != nil {
		return false
	}
	return fa == fb
}
