package cart_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norun9/microservices-demo-ambient/src/storefront/cart"
)

func TestCartStateJSONUsesNumbers(t *testing.T) {
	s := cart.CartState{
		Items: []cart.CartItem{{ID: "12", Title: "Mug", Price: decimal.RequireFromString("8.99"), Image: "mug.jpg", Quantity: 2}},
		Total: decimal.RequireFromString("17.98"),
	}

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"id":"12","title":"Mug","price":8.99,"image":"mug.jpg","quantity":2}],"total":17.98}`, string(b))

	var back cart.CartState
	require.NoError(t, json.Unmarshal(b, &back))
	if diff := cmp.Diff(s, back, decimalEqual); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyCartStateJSON(t *testing.T) {
	b, err := json.Marshal(cart.CartState{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"total":0}`, string(b))
}

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var items []cart.CartItem
	require.NoError(t, json.Unmarshal([]byte(`[{"id":42,"price":"3.50","quantity":1},{"id":"sku-9","price":2,"quantity":1}]`), &items))

	require.Len(t, items, 2)
	assert.Equal(t, cart.ID("42"), items[0].ID)
	assert.Equal(t, "3.5", items[0].Price.String())
	assert.Equal(t, cart.ID("sku-9"), items[1].ID)
}

func TestNumericAndStringIDsShareALine(t *testing.T) {
	var state cart.CartState
	require.NoError(t, json.Unmarshal([]byte(`{"items":[
		{"id":1,"title":"Mug","price":2,"quantity":1},
		{"id":"1","title":"Mug","price":2,"quantity":2}
	],"total":6}`), &state))

	got := cart.NewStore(cart.WithInitialState(state)).State()
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.Equal(t, "6", got.Total.String())
}

func TestIDRejectsGarbage(t *testing.T) {
	var id cart.ID
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &id))
}

func TestCount(t *testing.T) {
	s := cart.CartState{Items: []cart.CartItem{item("a", 1, 2), item("b", 1, 3)}}
	assert.Equal(t, 5, s.Count())
}
