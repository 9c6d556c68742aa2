package engine

import (
	"encoding/json"
	"math"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldValueJSON(t *testing.T) {
	tests := []struct {
		value FieldValue
		want  string
	}{
		{Null, `null`},
		{String("test"), `"test"`},
		{Int64(-42), `-42`},
		{Uint64(42), `42`},
		{Float64(3.14), `3.14`},
		{Float64(math.NaN()), `null`},
		{Bool(true), `true`},
		{List(String("a"), Int64(1), Bool(true)), `["a",1,true]`},
		{List(), `[]`},
	}

	for _, tc := range tests {
		got, err := jsoniter.Marshal(tc.value)
		require.NoError(t, err)
		assert.JSONEq(t, tc.want, string(got))
	}
}

func TestFieldValueString(t *testing.T) {
	assert.Equal(t, "null", Null.String())
	assert.Equal(t, "test", String("test").String())
	assert.Equal(t, "-42", Int64(-42).String())
	assert.Equal(t, "42", Uint64(42).String())
	assert.Equal(t, "3.14", Float64(3.14).String())
	assert.Equal(t, "false", Bool(false).String())
	assert.Equal(t, "[a, 1]", List(String("a"), Int64(1)).String())
	assert.Equal(t, "[]", List().String())

	assert.Equal(t, `["a", 1, null]`, List(String("a"), Int64(1), Null).Literal())
}

func TestOptionalString(t *testing.T) {
	assert.True(t, OptionalString(nil).IsNull())

	s := ""
	v := OptionalString(&s)
	got, ok := v.AsString()
	assert.True(t, ok)
	assert.Equal(t, "", got)
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface([]interface{}{"x", 2.0, 2.5, json.Number("7"), nil, true})
	require.NoError(t, err)
	assert.Equal(t, List(String("x"), Int64(2), Float64(2.5), Int64(7), Null, Bool(true)), v)

	_, err = FromInterface(map[string]interface{}{})
	assert.Error(t, err)
}

func TestFieldValueCompare(t *testing.T) {
	assert.True(t, Int64(3).Equal(Uint64(3)))
	assert.True(t, Int64(3).Equal(Float64(3)))
	assert.False(t, Int64(3).Equal(String("3")))
	assert.True(t, Null.Equal(Null))
	assert.True(t, List(Int64(1)).Equal(List(Uint64(1))))

	c, ok := Int64(-1).Compare(Uint64(1))
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Uint64(math.MaxUint64).Compare(Int64(math.MaxInt64))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = String("b").Compare(String("a"))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = String("b").Compare(Int64(1))
	assert.False(t, ok)
}

func TestAsInt64(t *testing.T) {
	n, ok := Uint64(5).AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)

	_, ok = Uint64(math.MaxUint64).AsInt64()
	assert.False(t, ok)

	_, ok = String("5").AsInt64()
	assert.False(t, ok)
}
