package deck

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []Card
		wantErr  bool
	}{
		{
			name:  "royal flush",
			input: "AsKsQsJsTs",
			expected: []Card{
				{Suit: Spades, Rank: Ace},
				{Suit: Spades, Rank: King},
				{Suit: Spades, Rank: Queen},
				{Suit: Spades, Rank: Jack},
				{Suit: Spades, Rank: Ten},
			},
		},
		{
			name:  "ten written as 10",
			input: "10h 9c",
			expected: []Card{
				{Suit: Hearts, Rank: Ten},
				{Suit: Clubs, Rank: Nine},
			},
		},
		{
			name:  "case insensitive",
			input: "asKHqDjc",
			expected: []Card{
				{Suit: Spades, Rank: Ace},
				{Suit: Hearts, Rank: King},
				{Suit: Diamonds, Rank: Queen},
				{Suit: Clubs, Rank: Jack},
			},
		},
		{name: "invalid rank", input: "XsKs", wantErr: true},
		{name: "invalid suit", input: "AsKx", wantErr: true},
		{name: "odd length", input: "AsK", wantErr: true},
		{name: "empty string", input: "", expected: []Card{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCards(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMustParseCardsPanics(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Card{NewCard(Ace, Spades), NewCard(King, Spades)}, MustParseCards("AsKs"))
	assert.Panics(t, func() { MustParseCards("invalid") })
}

func TestCardStrings(t *testing.T) {
	t.Parallel()

	c := NewCard(Ace, Spades)
	assert.Equal(t, "A♠", c.String())
	assert.Equal(t, "As", c.Code())
	assert.Equal(t, "T♥", NewCard(Ten, Hearts).String())
	assert.Equal(t, "Sixes", Six.Plural())
	assert.Equal(t, []string{"2c", "Kd"}, Codes(MustParseCards("2cKd")))
	assert.False(t, Card{}.Valid())
}

func TestCardJSON(t *testing.T) {
	t.Parallel()

	cards := MustParseCards("AsTd2c")
	data, err := json.Marshal(cards)
	require.NoError(t, err)
	assert.JSONEq(t, `["As","Td","2c"]`, string(data))

	var decoded []Card
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cards, decoded)

	var bad Card
	assert.Error(t, json.Unmarshal([]byte(`"Xx"`), &bad))
}
