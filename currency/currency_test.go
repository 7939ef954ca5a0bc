package currency_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/direct-state-transfer/fundme/currency"
)

func Test_ETH_Parse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "one-ether", input: "1", want: "1000000000000000000"},
		{name: "fraction", input: "0.01", want: "10000000000000000"},
		{name: "smallest-unit", input: "0.000000000000000001", want: "1"},
		{name: "below-smallest-unit", input: "0.0000000000000000001", wantErr: true},
		{name: "zero", input: "0", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "invalid-string", input: "one", wantErr: true},
	}
	p := currency.NewParser(currency.ETH)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func Test_ETH_Print(t *testing.T) {
	p := currency.NewParser(currency.ETH)
	amount, ok := new(big.Int).SetString("1234567890000000000", 10)
	require.True(t, ok)
	assert.Equal(t, "1.234568", p.Print(amount))
	assert.Equal(t, "0.000000", p.Print(big.NewInt(0)))
}

func Test_USD_ParsePrint(t *testing.T) {
	p := currency.NewParser(currency.USD)
	amount, err := p.Parse("200")
	require.NoError(t, err)
	want := new(big.Int).Mul(big.NewInt(200), big.NewInt(1e18))
	assert.Equal(t, 0, want.Cmp(amount))
	assert.Equal(t, "200.00", p.Print(amount))
}

func Test_Parse_BelowSmallestUnit(t *testing.T) {
	for _, c := range []string{currency.ETH, currency.USD} {
		c := c
		t.Run(c, func(t *testing.T) {
			_, err := currency.NewParser(c).Parse("0")
			require.Error(t, err)
			assert.Contains(t, err.Error(), c)
		})
	}
}

func Test_IsSupported(t *testing.T) {
	assert.True(t, currency.IsSupported(currency.ETH))
	assert.True(t, currency.IsSupported(currency.USD))
	assert.False(t, currency.IsSupported("BTC"))
}
