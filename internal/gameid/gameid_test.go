package gameid

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	id := Generate()
	assert.Len(t, id, Length)
	require.NoError(t, Validate(id))
}

func TestGenerateUnique(t *testing.T) {
	t.Parallel()

	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := Generate()
		require.False(t, ids[id], "duplicate ID generated: %s", id)
		ids[id] = true
	}
}

func TestGenerateTimeSorted(t *testing.T) {
	t.Parallel()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, Generate())
		time.Sleep(2 * time.Millisecond)
	}
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}

func TestTyped(t *testing.T) {
	t.Parallel()

	id := Typed("hand")
	require.True(t, strings.HasPrefix(id, "hand_"))
	_, err := Parse(id)
	require.NoError(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	g := NewGenerator(bytes.NewReader(bytes.Repeat([]byte{0xab}, 64)))
	id := g.Generate()
	u, err := Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), u.Version())
	assert.Equal(t, id, encode(u))
}

func TestEncodeKnownValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, strings.Repeat("0", Length), encode(uuid.Nil))
	assert.Equal(t, "7"+strings.Repeat("z", Length-1), encode(uuid.UUID(bytes.Repeat([]byte{0xff}, 16))))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
		ok   bool
	}{
		{"zero", strings.Repeat("0", 26), true},
		{"too short", "0123", false},
		{"first char too large", "8" + strings.Repeat("0", 25), false},
		{"excluded letter", "0" + strings.Repeat("i", 25), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
