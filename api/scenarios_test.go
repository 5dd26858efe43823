package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) loadScenario(id string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": id})
}

func TestListScenarios(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeBody[[]ScenarioDTO](t, rec)
	require.Len(t, list, len(scenarios))
	for _, sc := range list {
		_, ok := s.handler.scenarioLoaders()[sc.ID]
		assert.True(t, ok, "scenario %s has no loader", sc.ID)
	}
}

func TestLoadScenario_All(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.loadScenario(sc.ID)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = s.do(http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, sc.ID, decodeBody[ScenarioDTO](t, rec).ID)

			// Loading twice resets first, so names never collide
			rec = s.loadScenario(sc.ID)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}

func TestLoadScenario_FIFOSplit(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.loadScenario("fifo-split").Code)

	rec := s.do(http.MethodGet, "/api/purchases", nil)
	remaining := make(map[string]int64)
	for _, b := range decodeBody[[]BatchDTO](t, rec) {
		remaining[b.BatchCode] = b.QuantityRemaining
	}
	assert.Equal(t, map[string]int64{"A1": 0, "B1": 60}, remaining)

	rec = s.do(http.MethodGet, "/api/sales", nil)
	sales := decodeBody[[]SaleDTO](t, rec)
	require.Len(t, sales, 1)
	assert.True(t, sales[0].CostOfGoods.Equal(decimal.NewFromInt(8200)))
}

func TestLoadScenario_SupplierSnapshot(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.loadScenario("supplier-snapshot").Code)

	rec := s.do(http.MethodGet, "/api/suppliers", nil)
	assert.Empty(t, decodeBody[[]SupplierDTO](t, rec))

	rec = s.do(http.MethodGet, "/api/purchases", nil)
	batches := decodeBody[[]BatchDTO](t, rec)
	require.Len(t, batches, 1)
	assert.Nil(t, batches[0].SupplierID)
	require.NotNil(t, batches[0].SupplierName)
	assert.Equal(t, "Ganesh Dairy", *batches[0].SupplierName)
}

func TestLoadScenario_MonthlyProfit(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.loadScenario("monthly-profit").Code)

	rec := s.do(http.MethodGet, "/api/reports/monthly-profit", nil)
	profit := decodeBody[ProfitReportDTO](t, rec)
	require.Len(t, profit.Months, 1)
	assert.True(t, profit.Months[0].Revenue.Equal(decimal.NewFromInt(1500)))
	assert.True(t, profit.Months[0].COGS.Equal(decimal.NewFromInt(1000)))
	assert.True(t, profit.Months[0].Profit.Equal(decimal.NewFromInt(500)))
}

func TestLoadScenario_SweetShop(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.loadScenario("sweet-shop").Code)

	rec := s.do(http.MethodGet, "/api/sales", nil)
	assert.Len(t, decodeBody[[]SaleDTO](t, rec), 6)

	rec = s.do(http.MethodGet, "/api/reports/monthly-profit", nil)
	assert.Len(t, decodeBody[ProfitReportDTO](t, rec).Months, 3)

	rec = s.do(http.MethodGet, "/api/stock", nil)
	overview := decodeBody[StockOverviewDTO](t, rec)
	assert.Equal(t, 4, overview.TotalProducts)
	assert.Equal(t, int64(60+80+120+200+50-30-70-45-25-15-10), overview.TotalUnits)
}

func TestLoadScenario_Unknown(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.loadScenario("nope").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/scenarios/load", map[string]any{}).Code)
}

func TestResetDatabase(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.loadScenario("sweet-shop").Code)

	rec := s.do(http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/products", nil)
	assert.Empty(t, decodeBody[[]ProductDTO](t, rec))

	rec = s.do(http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}
