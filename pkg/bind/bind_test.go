package bind

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listQuery struct {
	Search     string   `query:"q"         validate:"max=20"`
	MinPrice   *float64 `query:"min_price" validate:"nullable,gte=0"`
	Categories []string `query:"category"`
	Limit      int      `query:"limit"`
	Ignored    string
}

func TestQuery_Binds(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/products?q=ring&min_price=9.5&category=a&category=b&category=&limit=3", nil)

	var q listQuery
	require.Nil(t, Query(r, &q))
	assert.Equal(t, "ring", q.Search)
	require.NotNil(t, q.MinPrice)
	assert.Equal(t, 9.5, *q.MinPrice)
	assert.Equal(t, []string{"a", "b"}, q.Categories)
	assert.Equal(t, 3, q.Limit)
}

func TestQuery_MissingParamsStayZero(t *testing.T) {
	var q listQuery
	require.Nil(t, Query(httptest.NewRequest("GET", "/api/products?min_price=", nil), &q))
	assert.Nil(t, q.MinPrice)
	assert.Nil(t, q.Categories)
}

func TestQuery_ParseErrors(t *testing.T) {
	var q listQuery
	errs := Query(httptest.NewRequest("GET", "/?min_price=cheap&limit=1.5", nil), &q)
	assert.Equal(t, map[string]string{
		"min_price": "The min_price field must be a number.",
		"limit":     "The limit field must be an integer.",
	}, errs)
}

func TestQuery_ValidationErrors(t *testing.T) {
	var q listQuery
	errs := Query(httptest.NewRequest("GET", "/?min_price=-2", nil), &q)
	assert.Equal(t, "The min_price must be greater than or equal to 0.", errs["min_price"])
}

func TestQuery_PanicsOnNonPointer(t *testing.T) {
	assert.Panics(t, func() { Query(httptest.NewRequest("GET", "/", nil), listQuery{}) })
}
