// StudyForge | 2026
// handler_test.go

package quota

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/backend/internal/middleware"
)

// stubAuth injects fixed claims the way the JWT middleware would after
// verifying a token.
func stubAuth(accountID, tier string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = context.WithValue(ctx, middleware.UserIDKey, accountID)
			ctx = context.WithValue(ctx, middleware.UserTierKey, tier)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, accountID, tier string) (chi.Router, *MemoryLedger) {
	t.Helper()

	policy, err := NewPolicy(testQuotaConfig())
	require.NoError(t, err)

	ledger := NewMemoryLedger()
	handler := NewHandler(NewEnforcer(ledger, policy, nil), ledger)

	r := chi.NewRouter()
	handler.RegisterRoutes(r, stubAuth(accountID, tier))
	handler.RegisterAdminRoutes(r, stubAuth(accountID, tier), passthrough)

	return r, ledger
}

func doRequest(t *testing.T, r chi.Router, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestGetLimits(t *testing.T) {
	r, ledger := newTestRouter(t, "acct-1", "guest")
	seedCounter(t, ledger, "acct-1", KindPlan, 2)

	rec, env := doRequest(t, r, http.MethodGet, "/limits")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var results []Result
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, len(AllKinds()))

	byKind := make(map[ContentKind]Result, len(results))
	for _, res := range results {
		byKind[res.Kind] = res
	}
	assert.Equal(t, int64(2), byKind[KindPlan].Current)
	assert.True(t, byKind[KindPlan].Warning)
	assert.Equal(t, int64(0), byKind[KindFlashcard].Current)
}

func TestGetLimitSingleKind(t *testing.T) {
	r, ledger := newTestRouter(t, "acct-1", "guest")
	seedCounter(t, ledger, "acct-1", KindLesson, 5)

	rec, env := doRequest(t, r, http.MethodGet, "/limits/lesson")
	require.Equal(t, http.StatusOK, rec.Code)

	var res Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Allowed)
	assert.True(t, res.UpgradeRequired)
	assert.NotEmpty(t, res.Message)

	// Advisory reads never consume a slot.
	counters, err := ledger.Read(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), counters.Get(KindLesson))
}

func TestGetLimitUnknownKind(t *testing.T) {
	r, _ := newTestRouter(t, "acct-1", "guest")

	rec, env := doRequest(t, r, http.MethodGet, "/limits/quiz")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestIncrementUntilDenied(t *testing.T) {
	r, _ := newTestRouter(t, "acct-1", "guest")

	for i := 0; i < 3; i++ {
		rec, env := doRequest(t, r, http.MethodPost, "/limits/plan/increment")
		require.Equal(t, http.StatusOK, rec.Code, "increment %d", i+1)
		require.True(t, env.Success)
	}

	rec, env := doRequest(t, r, http.MethodPost, "/limits/plan/increment")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "LIMIT_REACHED", env.Error.Code)
	assert.Contains(t, env.Error.Message, "Upgrade")
}

func TestIncrementFullTier(t *testing.T) {
	r, _ := newTestRouter(t, "acct-1", "full")

	for i := 0; i < 20; i++ {
		rec, _ := doRequest(t, r, http.MethodPost, "/limits/flashcard/increment")
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestUnknownTierClaimTreatedAsGuest(t *testing.T) {
	r, ledger := newTestRouter(t, "acct-1", "premium")
	seedCounter(t, ledger, "acct-1", KindPlan, 3)

	rec, _ := doRequest(t, r, http.MethodPost, "/limits/plan/increment")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestAdminReset(t *testing.T) {
	r, ledger := newTestRouter(t, "admin-1", "full")
	seedCounter(t, ledger, "acct-1", KindPlan, 3)
	seedCounter(t, ledger, "acct-1", KindLesson, 2)

	rec, _ := doRequest(t, r, http.MethodPost, "/admin/limits/acct-1/reset/plan")
	require.Equal(t, http.StatusNoContent, rec.Code)

	counters, err := ledger.Read(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), counters.Get(KindPlan))
	assert.Equal(t, int64(2), counters.Get(KindLesson))

	rec, _ = doRequest(t, r, http.MethodPost, "/admin/limits/acct-1/reset")
	require.Equal(t, http.StatusNoContent, rec.Code)

	counters, err = ledger.Read(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), counters.Get(KindLesson))
}

func TestAdminGetAccountLimits(t *testing.T) {
	r, ledger := newTestRouter(t, "admin-1", "full")
	seedCounter(t, ledger, "acct-1", KindFlashcard, 4)

	rec, env := doRequest(t, r, http.MethodGet, "/admin/limits/acct-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var counters Counters
	require.NoError(t, json.Unmarshal(env.Data, &counters))
	assert.Equal(t, int64(4), counters.Get(KindFlashcard))
}
