package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedAdapter(name, display string) Adapter {
	o := buildOptions("http://"+name, nil)
	return newRESTAdapter(Metadata{Name: name, DisplayName: display}, newStubFetcher(), o,
		&SinglePhase{URL: o.baseURL}, parseBybit)
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(namedAdapter("okx", "OKX"), namedAdapter("bybit", "Bybit"))
	require.NoError(t, err)

	assert.Equal(t, []string{"bybit", "okx"}, r.Names())
	assert.Equal(t, 2, r.Len())

	a, ok := r.Get("okx")
	require.True(t, ok)
	assert.Equal(t, "OKX", a.DisplayName())

	_, ok = r.Get("ftx")
	assert.False(t, ok)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "bybit", all[0].Name())
}

func TestNewRegistry_RejectsInvalid(t *testing.T) {
	_, err := NewRegistry(namedAdapter("okx", ""), namedAdapter("okx", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = NewRegistry(namedAdapter(" ", ""))
	require.Error(t, err)
}

func TestRegistry_Enabled(t *testing.T) {
	r, err := NewRegistry(DefaultAdapters(newStubFetcher(), nil)...)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Len())

	same, err := r.Enabled(nil)
	require.NoError(t, err)
	assert.Equal(t, r.Names(), same.Names())

	subset, err := r.Enabled([]string{"Bybit", " okx "})
	require.NoError(t, err)
	assert.Equal(t, []string{"bybit", "okx"}, subset.Names())

	_, err = r.Enabled([]string{"ftx"})
	assert.ErrorIs(t, err, ErrUnknownExchange)
}

func TestDisplayNameFallback(t *testing.T) {
	assert.Equal(t, "Kraken", DisplayName(namedAdapter("kraken", "")))
	assert.Equal(t, "Gate.io", DisplayName(NewGateAdapter(newStubFetcher())))
}

func TestToNewExchange(t *testing.T) {
	ne := ToNewExchange(NewBybitAdapter(newStubFetcher()))
	assert.Equal(t, "bybit", ne.Name)
	assert.Equal(t, "Bybit", ne.DisplayName)
	assert.Equal(t, "https://api.bybit.com", ne.APIURL)
	assert.Equal(t, "#f7931a", ne.Color)
	require.NotNil(t, ne.WSURL)
	assert.Equal(t, "wss://stream.bybit.com/v5/public/linear", *ne.WSURL)
	assert.True(t, ne.IsActive)

	bare := ToNewExchange(namedAdapter("kraken", ""))
	assert.Nil(t, bare.WSURL)
}
