package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPots(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		contribs []Contribution
		pots     []Pot
		uncalled *Refund
	}{
		{
			name: "all-in creates side pot",
			contribs: []Contribution{
				{Seat: 0, Amount: 50},
				{Seat: 1, Amount: 150},
				{Seat: 2, Amount: 150},
			},
			pots: []Pot{
				{Amount: 150, Eligible: []int{0, 1, 2}},
				{Amount: 200, Eligible: []int{1, 2}},
			},
		},
		{
			name: "equal contributions make one pot",
			contribs: []Contribution{
				{Seat: 0, Amount: 100},
				{Seat: 1, Amount: 100},
				{Seat: 2, Amount: 100},
			},
			pots: []Pot{{Amount: 300, Eligible: []int{0, 1, 2}}},
		},
		{
			name: "folded short contribution merges layers",
			contribs: []Contribution{
				{Seat: 0, Amount: 100},
				{Seat: 1, Amount: 100},
				{Seat: 2, Amount: 40, Folded: true},
			},
			pots: []Pot{{Amount: 240, Eligible: []int{0, 1}}},
		},
		{
			name: "uncalled bet is returned",
			contribs: []Contribution{
				{Seat: 0, Amount: 200},
				{Seat: 1, Amount: 80},
			},
			pots:     []Pot{{Amount: 160, Eligible: []int{0, 1}}},
			uncalled: &Refund{Seat: 0, Amount: 120},
		},
		{
			name: "layer nobody can win joins the pot below",
			contribs: []Contribution{
				{Seat: 0, Amount: 50},
				{Seat: 1, Amount: 100, Folded: true},
				{Seat: 2, Amount: 100, Folded: true},
			},
			pots: []Pot{{Amount: 250, Eligible: []int{0}}},
		},
		{
			name: "three levels",
			contribs: []Contribution{
				{Seat: 4, Amount: 300},
				{Seat: 1, Amount: 20},
				{Seat: 7, Amount: 300},
				{Seat: 2, Amount: 120},
			},
			pots: []Pot{
				{Amount: 80, Eligible: []int{1, 2, 4, 7}},
				{Amount: 300, Eligible: []int{2, 4, 7}},
				{Amount: 360, Eligible: []int{4, 7}},
			},
		},
		{
			name: "blinds only",
			contribs: []Contribution{
				{Seat: 1, Amount: 5, Folded: true},
				{Seat: 2, Amount: 10},
			},
			pots:     []Pot{{Amount: 10, Eligible: []int{2}}},
			uncalled: &Refund{Seat: 2, Amount: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := BuildPots(tt.contribs)
			assert.Equal(t, tt.pots, got.Pots)
			assert.Equal(t, tt.uncalled, got.Uncalled)

			var in int64
			for _, c := range tt.contribs {
				in += c.Amount
			}
			out := got.Total()
			if got.Uncalled != nil {
				out += got.Uncalled.Amount
			}
			assert.Equal(t, in, out, "chips in must equal chips out")
		})
	}
}

func TestBuildPotsEmpty(t *testing.T) {
	t.Parallel()

	got := BuildPots(nil)
	assert.Empty(t, got.Pots)
	assert.Nil(t, got.Uncalled)
	assert.Zero(t, got.Total())
}
