package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSortsKeysRecursively(t *testing.T) {
	a := json.RawMessage(`{"b":1,"a":{"z":true,"y":[3,2,1]},"c":"x"}`)
	b := json.RawMessage(`{ "c" : "x", "a" : { "y" : [3, 2, 1], "z" : true }, "b" : 1 }`)

	encodedA, err := Encode(a)
	require.NoError(t, err)
	encodedB, err := Encode(b)
	require.NoError(t, err)

	assert.Equal(t, `{"a":{"y":[3,2,1],"z":true},"b":1,"c":"x"}`, string(encodedA))
	assert.Equal(t, encodedA, encodedB)

	hashA, err := Hash(a)
	require.NoError(t, err)
	hashB, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}

func TestEncodeStructAndMapAgree(t *testing.T) {
	type sample struct {
		Zeta  string `json:"zeta"`
		Alpha int    `json:"alpha"`
	}

	fromStruct, err := Encode(sample{Zeta: "z", Alpha: 7})
	require.NoError(t, err)
	fromMap, err := Encode(map[string]any{"alpha": 7, "zeta": "z"})
	require.NoError(t, err)

	assert.Equal(t, string(fromMap), string(fromStruct))
}

func TestEncodeNumbers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "integer", input: `42`, want: `42`},
		{name: "negative zero", input: `-0`, want: `0`},
		{name: "integral float", input: `1.0`, want: `1`},
		{name: "exponent", input: `1e3`, want: `1000`},
		{name: "large integer keeps digits", input: `12345678901234567890`, want: `12345678901234567890`},
		{name: "fraction", input: `1.50`, want: `1.5`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(json.RawMessage(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestEncodeStrings(t *testing.T) {
	got, err := Encode(map[string]any{"text": "<a href=\"x\">é\n\x01</a>"})
	require.NoError(t, err)
	assert.Equal(t, `{"text":"<a href=\"x\">é\n\u0001</a>"}`, string(got))
}

func TestEncodeRejectsInvalidInput(t *testing.T) {
	_, err := Encode(json.RawMessage(`{"broken":`))
	require.ErrorIs(t, err, ErrUnencodable)

	_, err = Encode(json.RawMessage(`1e999`))
	require.ErrorIs(t, err, ErrUnencodable)

	_, err = Encode(func() {})
	require.ErrorIs(t, err, ErrUnencodable)
}

func TestHexDigestIsTruncatedSHA512(t *testing.T) {
	assert.Equal(t, "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce", HexDigest(nil))
	assert.Equal(t, VersionPrefix+"cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce", Digest([]byte{}))
}
