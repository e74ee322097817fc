package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/configtrail/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Document
		wantErr bool
	}{
		{
			name:  "flat mapping",
			input: "host: localhost\nport: 8080\n",
			want:  Document{"host": "localhost", "port": 8080},
		},
		{
			name:  "nested mapping",
			input: "database:\n  host: db.local\n  pool: \"20\"\n",
			want:  Document{"database": map[string]any{"host": "db.local", "pool": "20"}},
		},
		{
			name:    "top level sequence rejected",
			input:   "- a\n- b\n",
			wantErr: true,
		},
		{
			name:    "top level scalar rejected",
			input:   "just a string\n",
			wantErr: true,
		},
		{
			name:    "empty document rejected",
			input:   "",
			wantErr: true,
		},
		{
			name:    "malformed YAML rejected",
			input:   "a: [unclosed\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.IsErrorCode(err, types.ErrInvalidDocument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	doc := Document{
		"server": map[string]any{"host": "localhost", "port": 8080},
		"debug":  true,
	}

	data, err := Serialize(doc)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, Equal(doc, parsed))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input Document
		want  Document
	}{
		{
			name:  "numeric string becomes int",
			input: Document{"port": "8080"},
			want:  Document{"port": 8080},
		},
		{
			name:  "nested numeric strings",
			input: Document{"db": map[string]any{"pool": "20", "host": "db1"}},
			want:  Document{"db": map[string]any{"pool": 20, "host": "db1"}},
		},
		{
			name:  "non-numeric scalars unchanged",
			input: Document{"name": "svc-01", "ratio": "1.5", "neg": "-3", "empty": ""},
			want:  Document{"name": "svc-01", "ratio": "1.5", "neg": "-3", "empty": ""},
		},
		{
			name:  "sequences pass through",
			input: Document{"tags": []any{"1", "two"}},
			want:  Document{"tags": []any{"1", "two"}},
		},
		{
			name:  "existing ints and bools unchanged",
			input: Document{"n": 7, "on": true},
			want:  Document{"n": 7, "on": true},
		},
		{
			name:  "nil document",
			input: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	input := Document{"outer": map[string]any{"n": "42"}}

	_ = Normalize(input)

	assert.Equal(t, "42", input["outer"].(map[string]any)["n"])
}

func TestClone_DeepCopy(t *testing.T) {
	original := Document{
		"nested": map[string]any{"k": "v"},
		"list":   []any{map[string]any{"inner": 1}},
	}

	cloned := Clone(original)
	cloned["nested"].(map[string]any)["k"] = "changed"
	cloned["list"].([]any)[0].(map[string]any)["inner"] = 99

	assert.Equal(t, "v", original["nested"].(map[string]any)["k"])
	assert.Equal(t, 1, original["list"].([]any)[0].(map[string]any)["inner"])
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a    Document
		b    Document
		want bool
	}{
		{
			name: "identical documents",
			a:    Document{"a": 1, "b": map[string]any{"c": "x"}},
			b:    Document{"a": 1, "b": map[string]any{"c": "x"}},
			want: true,
		},
		{
			name: "int and int64 are equal",
			a:    Document{"a": 1},
			b:    Document{"a": int64(1)},
			want: true,
		},
		{
			name: "different values",
			a:    Document{"a": 1},
			b:    Document{"a": 2},
			want: false,
		},
		{
			name: "missing key",
			a:    Document{"a": 1, "b": 2},
			b:    Document{"a": 1},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestFingerprint_Stable(t *testing.T) {
	doc := Document{"b": 2, "a": map[string]any{"y": "1", "x": true}}

	f1, err := Fingerprint(doc)
	require.NoError(t, err)
	f2, err := Fingerprint(doc)
	require.NoError(t, err)

	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64)
}

func TestNormalize_SequenceElementsNotAliased(t *testing.T) {
	input := Document{"servers": []any{map[string]any{"host": "a"}}}

	out := Normalize(input)
	out["servers"].([]any)[0].(map[string]any)["host"] = "b"

	// 序列内嵌套映射也必须是独立副本
	assert.Equal(t, "a", input["servers"].([]any)[0].(map[string]any)["host"])
}
