package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/kurban/internal/cache"
	"github.com/mamadbah2/kurban/internal/config"
	"github.com/mamadbah2/kurban/internal/domain/models"
	"github.com/mamadbah2/kurban/internal/repository/memory"
	"github.com/mamadbah2/kurban/internal/server/handlers"
	"github.com/mamadbah2/kurban/internal/service/auth"
	"github.com/mamadbah2/kurban/internal/service/inventory"
	"github.com/mamadbah2/kurban/internal/service/reporting"
	"github.com/mamadbah2/kurban/internal/service/whatsapp"
)

type testEnv struct {
	engine http.Handler
	store  *memory.Store
	cache  *cache.AnimalCache
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	authCfg := config.AuthConfig{PIN: "1234", TokenSecret: "test-secret", CookieName: "isAuthenticated"}
	waCfg := config.WhatsAppConfig{CountryCode: "90"}

	store := memory.NewStore(nil)
	animalCache := cache.New(store, nil)
	require.NoError(t, animalCache.Start(context.Background()))
	t.Cleanup(animalCache.Stop)

	inv := inventory.NewService(store, models.DefaultPaymentOptions(), nil)
	sessions := auth.NewManager(authCfg, nil)
	messaging := whatsapp.NewMetaWhatsAppService(waCfg, nil, nil)
	reports := reporting.NewService(store, store, nil, "Hayvanlar!A1", time.UTC, nil)

	engine := New(Handlers{
		Auth:     handlers.NewAuthHandler(sessions, authCfg, nil),
		Animals:  handlers.NewAnimalHandler(inv, animalCache, nil),
		Shares:   handlers.NewShareHandler(inv, messaging, nil),
		Reports:  handlers.NewReportHandler(reports, messaging, waCfg, nil),
		Messages: handlers.NewMessageHandler(messaging, nil),
	}, nil)

	token, _, err := sessions.Login("1234")
	require.NoError(t, err)

	return &testEnv{engine: engine, store: store, cache: animalCache, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field"`
}

type detailBody struct {
	ID         string        `json:"id"`
	SoldShares int           `json:"soldShares"`
	SharePrice float64       `json:"sharePrice"`
	Slots      []models.Slot `json:"slots"`
}

var largeAnimal = map[string]any{
	"type":         "büyükbaş",
	"animalNumber": "7",
	"name":         "Kara boğa",
	"totalPrice":   70000,
	"totalShares":  7,
	"deliveryType": "Hisseli",
}

func (e *testEnv) createAnimal(t *testing.T, body map[string]any) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/animals", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]string](t, rec)["id"]
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	env.token = ""
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	env.token = ""

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/animals", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"pin": "0000"}).Code)

	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"pin": "1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "isAuthenticated", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 365*24*60*60, cookies[0].MaxAge, "sessions without a ttl outlive the browser session")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(cookies[0])
	res := httptest.NewRecorder()
	env.engine.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	env.token = decode[map[string]any](t, rec)["token"].(string)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/auth/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/session", nil).Code)
}

func TestAnimalLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createAnimal(t, largeAnimal)

	rec := env.do(t, http.MethodGet, "/api/animals/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[detailBody](t, rec)
	assert.Equal(t, 10000.0, detail.SharePrice)
	assert.Len(t, detail.Slots, 7)

	rec = env.do(t, http.MethodPost, "/api/animals", largeAnimal)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(models.CodeAnimalNumberTaken), decode[errorBody](t, rec).Code)

	edited := map[string]any{}
	for k, v := range largeAnimal {
		edited[k] = v
	}
	edited["totalPrice"] = 77000
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPut, "/api/animals/"+id, edited).Code)

	assert.Equal(t, http.StatusPreconditionRequired, env.do(t, http.MethodDelete, "/api/animals/"+id, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/animals/"+id+"?confirm=true", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/animals/"+id, nil).Code)
}

func TestListAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.createAnimal(t, largeAnimal)
	env.createAnimal(t, map[string]any{"type": "küçükbaş", "animalNumber": 3, "totalPrice": 9000})

	rec := env.do(t, http.MethodGet, "/api/animals?filter=SMALL", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Animals []struct {
			Type         string `json:"type"`
			DeliveryType string `json:"deliveryType"`
			TotalShares  int    `json:"totalShares"`
		} `json:"animals"`
		Stats models.Stats `json:"stats"`
	}](t, rec)
	require.Len(t, body.Animals, 1)
	assert.Equal(t, "Ayaktan", body.Animals[0].DeliveryType)
	assert.Equal(t, 1, body.Animals[0].TotalShares)
	assert.Equal(t, 8, body.Stats.Total.RemainingShares, "stats ignore the filter")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/animals?filter=GOATS", nil).Code)
}

func TestNumberHelpers(t *testing.T) {
	env := newTestEnv(t)
	env.createAnimal(t, largeAnimal)
	large := url.QueryEscape(string(models.AnimalTypeLarge))
	small := url.QueryEscape(string(models.AnimalTypeSmall))

	rec := env.do(t, http.MethodGet, "/api/animals/number-check?type="+large+"&number=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["available"])

	rec = env.do(t, http.MethodGet, "/api/animals/number-check?type="+small+"&number=7", nil)
	assert.Equal(t, true, decode[map[string]any](t, rec)["available"])

	rec = env.do(t, http.MethodGet, "/api/animals/number-check?type="+small+"&number=x7", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/animals/last-number?type="+large, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8.0, decode[map[string]any](t, rec)["next"])

	rec = env.do(t, http.MethodPost, "/api/animals/normalize", map[string]any{"type": "küçükbaş", "deliveryType": "Hisseli", "totalShares": 7})
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode[struct {
		Draft models.AnimalDraft `json:"draft"`
	}](t, rec).Draft
	assert.Equal(t, models.DeliveryOnFoot, draft.DeliveryType)
	assert.Equal(t, 1, draft.TotalShares)
}

func TestShareEndpoints(t *testing.T) {
	env := newTestEnv(t)
	id := env.createAnimal(t, largeAnimal)
	base := "/api/animals/" + id + "/shares/"

	rec := env.do(t, http.MethodPut, base+"2", map[string]any{"customerName": "Ayşe", "customerPhone": "5321234567", "paidAmount": 4000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[detailBody](t, rec).SoldShares)

	rec = env.do(t, http.MethodPut, base+"3", map[string]any{"customerName": "Ali", "customerPhone": "5321234567", "paidAmount": 10001})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errBody := decode[errorBody](t, rec)
	assert.Equal(t, string(models.CodeOverpayment), errBody.Code)
	assert.Equal(t, "paidAmount", errBody.Field)

	rec = env.do(t, http.MethodGet, base+"2/message", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decode[struct {
		Message models.BuyerMessage `json:"message"`
		CanSend bool                `json:"canSend"`
	}](t, rec)
	assert.True(t, strings.HasPrefix(msg.Message.Link, "https://wa.me/905321234567?text="))
	assert.False(t, msg.CanSend)

	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodPost, base+"2/notify", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base+"5/message", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"x", nil).Code)

	assert.Equal(t, http.StatusPreconditionRequired, env.do(t, http.MethodDelete, base+"2", nil).Code)
	rec = env.do(t, http.MethodDelete, base+"2?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[detailBody](t, rec).SoldShares)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, base+"2?confirm=true", nil).Code)
}

func TestReportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.createAnimal(t, largeAnimal)

	rec := env.do(t, http.MethodGet, "/api/reports/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["animals"])

	rec = env.do(t, http.MethodGet, "/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["text"], "Kurban özeti")

	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodPost, "/api/reports/export", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodPost, "/api/reports/summary/send", nil).Code)
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "event:"); ok && name != "ping" {
			return name
		}
	}
}

func TestStreams(t *testing.T) {
	env := newTestEnv(t)
	id := env.createAnimal(t, largeAnimal)

	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	open := func(ctx context.Context, path string) *http.Response {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+env.token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return resp
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	listCtx, closeList := context.WithCancel(ctx)
	list := open(listCtx, "/api/animals/stream")
	assert.Equal(t, "list", readEvent(t, bufio.NewReader(list.Body)))

	detail := open(ctx, "/api/animals/"+id+"/stream")
	defer detail.Body.Close()
	events := bufio.NewReader(detail.Body)
	assert.Equal(t, "animal", readEvent(t, events))
	assert.Equal(t, 2, env.cache.Listeners())

	closeList()
	list.Body.Close()
	assert.Eventually(t, func() bool { return env.cache.Listeners() == 1 }, 2*time.Second, 10*time.Millisecond,
		"closing a stream releases its listener")

	require.NoError(t, env.store.Delete(ctx, id))
	assert.Equal(t, "gone", readEvent(t, events))
	assert.Eventually(t, func() bool { return env.cache.Listeners() == 0 }, 2*time.Second, 10*time.Millisecond)
}
