package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sixd/internal/address/service"
	"sixd/internal/address/store"
	"sixd/internal/geo/region"
	identitymodels "sixd/internal/identity/models"
	identity "sixd/internal/identity/service"
	"sixd/internal/identity/store/account"
	id "sixd/pkg/domain"
	"sixd/pkg/requestcontext"
	"sixd/pkg/testutil"
)

type fixture struct {
	router    http.Handler
	accountID id.AccountID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ids := identity.New(account.NewInMemory(), identity.WithLogger(logger))
	svc := service.New(store.NewInMemory(), ids, region.Default(), service.WithLogger(logger))

	acc, _, err := ids.ResolveOrCreate(context.Background(), "idp|handler", "+252611234567",
		&identitymodels.Profile{DisplayName: "Hodan Ali"})
	require.NoError(t, err)

	h := New(svc, logger)
	r := chi.NewRouter()
	h.RegisterPublic(r)
	h.Register(r)
	return &fixture{router: r, accountID: acc.ID}
}

func (f *fixture) do(t *testing.T, method, path string, body any, at time.Time, authed bool) (int, map[string]any) {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req = req.WithContext(requestcontext.WithTime(req.Context(), at))
	if authed {
		req = testutil.WithAccountID(req, f.accountID.String())
	}
	rec := testutil.DoRequest(f.router, req)
	if rec.Body.Len() == 0 {
		return rec.Code, nil
	}
	return rec.Code, testutil.DecodeJSON[map[string]any](t, rec)
}

func mogadishu() map[string]any {
	return map[string]any{
		"lat":          2.0469,
		"lng":          45.3182,
		"region":       "Banaadir",
		"city":         "Mogadishu",
		"district":     "Hodan",
		"neighborhood": "Taleex",
	}
}

func TestRegisterThenReadProfile(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	status, body := f.do(t, http.MethodGet, "/v1/me", nil, t0, true)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["registration_complete"])
	assert.Nil(t, body["address"])

	status, body = f.do(t, http.MethodPost, "/v1/me/address", mogadishu(), t0, true)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "41-68-92", body["code"])
	assert.Equal(t, "03", body["locality_suffix"])
	assert.Equal(t, "2026-07-01T10:00:00Z", body["next_update_available"])

	status, body = f.do(t, http.MethodGet, "/v1/me", nil, t0, true)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["registration_complete"])
	assert.Equal(t, "Hodan Ali", body["display_name"])

	status, body = f.do(t, http.MethodPost, "/v1/me/address", mogadishu(), t0, true)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_registered", body["error"])
}

func TestUpdateCooldownResponse(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	status, _ := f.do(t, http.MethodPost, "/v1/me/address", mogadishu(), t0, true)
	require.Equal(t, http.StatusCreated, status)

	hargeisa := map[string]any{
		"lat": 9.5624, "lng": 44.0651,
		"region": "Woqooyi Galbeed", "city": "Hargeisa", "district": "26 June",
	}

	status, body := f.do(t, http.MethodPut, "/v1/me/address", hargeisa, t0.AddDate(0, 0, 29), true)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "update_cooldown_active", body["error"])
	assert.Equal(t, "2026-07-01T10:00:00Z", body["next_update_available"])

	status, body = f.do(t, http.MethodPut, "/v1/me/address", hargeisa, t0.AddDate(0, 0, 30), true)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Hargeisa", body["city"])

	status, body = f.do(t, http.MethodGet, "/v1/me/history", nil, t0.AddDate(0, 0, 30), true)
	require.Equal(t, http.StatusOK, status)
	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	first := entries[0].(map[string]any)
	assert.Equal(t, "41-68-92", first["code"])
	assert.Equal(t, "2026-07-01T10:00:00Z", first["archived_at"])
}

func TestUpdateWithoutAddress(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodPut, "/v1/me/address", mogadishu(), time.Now(), true)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "no_current_address", body["error"])
}

func TestAddressValidation(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	t.Run("missing coordinates", func(t *testing.T) {
		status, body := f.do(t, http.MethodPost, "/v1/me/address", map[string]any{"city": "Mogadishu"}, now, true)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "validation_error", body["error"])
	})

	t.Run("out of range coordinate", func(t *testing.T) {
		status, body := f.do(t, http.MethodPost, "/v1/me/address", map[string]any{"lat": 95.0, "lng": 45.0}, now, true)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_coordinate", body["error"])
	})

	t.Run("outside supported region", func(t *testing.T) {
		req := mogadishu()
		req["lat"], req["lng"] = -1.2921, 36.8219
		status, body := f.do(t, http.MethodPost, "/v1/me/address", req, now, true)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "unsupported_region", body["error"])
	})

	t.Run("region city and district are required", func(t *testing.T) {
		for _, field := range []string{"region", "city", "district"} {
			req := mogadishu()
			req[field] = "   "
			status, body := f.do(t, http.MethodPost, "/v1/me/address", req, now, true)
			assert.Equal(t, http.StatusBadRequest, status, field)
			assert.Equal(t, "validation_error", body["error"], field)
		}
	})

	t.Run("malformed client code", func(t *testing.T) {
		req := mogadishu()
		req["code"] = "41-68"
		status, body := f.do(t, http.MethodPost, "/v1/me/address", req, now, true)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_input", body["error"])
	})

	t.Run("client code must match derivation", func(t *testing.T) {
		req := mogadishu()
		req["code"] = "11-22-33"
		status, body := f.do(t, http.MethodPost, "/v1/me/address", req, now, true)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "validation_error", body["error"])
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		req := mogadishu()
		req["locality_suffix"] = "99"
		status, body := f.do(t, http.MethodPost, "/v1/me/address", req, now, true)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "bad_request", body["error"])
	})

	t.Run("neighborhood is optional", func(t *testing.T) {
		req := mogadishu()
		delete(req, "neighborhood")
		status, body := f.do(t, http.MethodPost, "/v1/me/address", req, now, true)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "", body["neighborhood"])
	})
}

func TestUpdateRequiresLabels(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	status, _ := f.do(t, http.MethodPost, "/v1/me/address", mogadishu(), t0, true)
	require.Equal(t, http.StatusCreated, status)

	req := mogadishu()
	delete(req, "district")
	status, body := f.do(t, http.MethodPut, "/v1/me/address", req, t0.AddDate(0, 0, 30), true)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["error"])

	status, body = f.do(t, http.MethodGet, "/v1/me/history", nil, t0.AddDate(0, 0, 30), true)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["entries"])
}

func TestProtectedRoutesNeedAccount(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodGet, "/v1/me", nil, time.Now(), false)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid_session", body["error"])
}

func TestPreAuthTools(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	t.Run("derive returns code, suffix and boxes", func(t *testing.T) {
		status, body := f.do(t, http.MethodPost, "/v1/codes/derive", map[string]any{"lat": 2.0469, "lng": 45.3182}, now, false)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "41-68-92", body["code"])
		assert.Equal(t, "03", body["locality_suffix"])
		assert.Equal(t, true, body["supported"])
		boxes, ok := body["boxes"].([]any)
		require.True(t, ok)
		assert.Len(t, boxes, 3)
	})

	t.Run("derive works outside the region but flags it", func(t *testing.T) {
		status, body := f.do(t, http.MethodPost, "/v1/codes/derive", map[string]any{"lat": -1.2921, "lng": 36.8219}, now, false)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, body["supported"])
	})

	t.Run("region check explains rejection", func(t *testing.T) {
		status, body := f.do(t, http.MethodPost, "/v1/regions/check", map[string]any{"lat": 1.0, "lng": 49.0}, now, false)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, body["supported"])
		assert.Contains(t, body["reason"], "indian_ocean_southeast")
	})

	t.Run("region check accepts supported point", func(t *testing.T) {
		status, body := f.do(t, http.MethodPost, "/v1/regions/check", map[string]any{"lat": 2.0469, "lng": 45.3182}, now, false)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["supported"])
		assert.Nil(t, body["reason"])
	})
}
