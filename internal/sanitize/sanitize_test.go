package sanitize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	Name string `json:"name"`
	Next *node  `json:"next"`
}

func TestSanitize_Scalars(t *testing.T) {
	assert.Nil(t, Sanitize(nil))
	assert.Equal(t, true, Sanitize(true))
	assert.Equal(t, int64(42), Sanitize(42))
	assert.Equal(t, int64(7), Sanitize(uint8(7)))
	assert.Equal(t, 1.5, Sanitize(1.5))
	assert.Equal(t, "hello", Sanitize("hello"))
}

func TestSanitize_SelfReferencingStruct(t *testing.T) {
	a := &node{Name: "a"}
	a.Next = a

	out := Sanitize(a)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a", m["name"])
	assert.Equal(t, CircularMarker, m["next"])

	// The result must actually be JSON-serializable.
	_, err := json.Marshal(out)
	assert.NoError(t, err)
}

func TestSanitize_CyclicMap(t *testing.T) {
	m := map[string]any{"k": "v"}
	m["self"] = m

	out := Sanitize(m)
	res, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", res["k"])
	assert.Equal(t, CircularMarker, res["self"])
}

func TestSanitize_CyclicSlice(t *testing.T) {
	s := make([]any, 2)
	s[0] = "x"
	s[1] = s

	out := Sanitize(s)
	res, ok := out.([]any)
	require.True(t, ok)
	assert.Equal(t, "x", res[0])
	assert.Equal(t, CircularMarker, res[1])
}

func TestSanitize_SharedNonCyclicPointer(t *testing.T) {
	// The same node referenced from two siblings is not a cycle and must
	// appear twice, not as a circular marker.
	shared := &node{Name: "shared"}
	out := Sanitize([]*node{shared, shared})

	res, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, res, 2)
	for _, item := range res {
		m, ok := item.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "shared", m["name"])
	}
}

func TestSanitize_TimeToISO(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "2025-03-14T09:26:53Z", Sanitize(ts))
	assert.Equal(t, "2025-03-14T09:26:53Z", Sanitize(&ts))

	var nilTime *time.Time
	assert.Nil(t, Sanitize(nilTime))
}

func TestSanitize_Error(t *testing.T) {
	out := Sanitize(errors.New("boom"))
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", m["message"])
	assert.NotEmpty(t, m["name"])
}

type codedError struct {
	Code int `json:"code"`
	msg  string
}

func (e *codedError) Error() string { return e.msg }

func TestSanitize_ErrorWithFields(t *testing.T) {
	out := Sanitize(&codedError{Code: 429, msg: "rate limited"})
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "rate limited", m["message"])
	assert.Equal(t, int64(429), m["code"])
}

func TestSanitize_BigInt(t *testing.T) {
	big1, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	assert.Equal(t, "123456789012345678901234567890", Sanitize(big1))
}

func TestSanitize_DropsFunctionsAndChannels(t *testing.T) {
	out := Sanitize(map[string]any{
		"fn":   func() {},
		"ch":   make(chan int),
		"keep": "value",
	})
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Nil(t, m["fn"])
	assert.Nil(t, m["ch"])
	assert.Equal(t, "value", m["keep"])
}

func TestSanitize_StripsNUL(t *testing.T) {
	assert.Equal(t, "ab", Sanitize("a\x00b"))

	out := Sanitize(map[string]string{"k\x00ey": "v\x00al"})
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "val", m["key"])
}

func TestSanitize_NonStringMapKeys(t *testing.T) {
	out := Sanitize(map[int]string{1: "one", 2: "two"})
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "one", m["1"])
	assert.Equal(t, "two", m["2"])
}

func TestSanitize_NaNAndInf(t *testing.T) {
	assert.Equal(t, "NaN", Sanitize(math.NaN()))
	assert.Equal(t, "+Inf", Sanitize(math.Inf(1)))
}

func TestSanitize_BytesAsText(t *testing.T) {
	assert.Equal(t, "raw", Sanitize([]byte("raw")))
}

func TestSanitize_JSONTags(t *testing.T) {
	type tagged struct {
		Kept    string `json:"kept_name"`
		Skipped string `json:"-"`
		Empty   string `json:"empty,omitempty"`
		hidden  string
	}
	out := Sanitize(tagged{Kept: "v", Skipped: "x", hidden: "y"})
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", m["kept_name"])
	assert.NotContains(t, m, "Skipped")
	assert.NotContains(t, m, "empty")
	assert.NotContains(t, m, "hidden")
}

func TestSanitize_DeepNestingTerminates(t *testing.T) {
	root := &node{Name: "0"}
	cur := root
	for i := 1; i < 200; i++ {
		next := &node{Name: fmt.Sprintf("%d", i)}
		cur.Next = next
		cur = next
	}

	out := Sanitize(root)
	require.NotNil(t, out)
	_, err := json.Marshal(out)
	assert.NoError(t, err)
}

func TestSanitize_Duration(t *testing.T) {
	assert.Equal(t, "1.5s", Sanitize(1500*time.Millisecond))
}
