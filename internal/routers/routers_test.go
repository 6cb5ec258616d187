package routers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Gopher0727/LockDeal/config"
	"github.com/Gopher0727/LockDeal/internal/handlers"
	"github.com/Gopher0727/LockDeal/internal/middlewares"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	"github.com/Gopher0727/LockDeal/internal/services"
	"github.com/Gopher0727/LockDeal/internal/storage"
	"github.com/Gopher0727/LockDeal/middleware/jwt"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

type api struct {
	t *testing.T
	r *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, storage.Migrate(db))

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	log := logger.NewNop()
	store := repositories.NewStore(db, nil)
	clock := services.SystemClock{}
	codes := services.NewCodeIssuer()
	notifier := services.NewLogNotifier(log)

	trust := services.NewTrustService(store, services.DefaultPolicy())
	groups := services.NewGroupService(store, trust, codes, notifier, clock, services.DefaultThreshold(), log)
	pickup := services.NewPickupService(store, groups, codes, notifier, nil, 0, services.AnyDay, clock, log)
	products := services.NewProductService(store, trust, log)
	ratings := services.NewRatingService(store, trust, log)

	tm := jwt.NewTokenManager("test-secret", 1, 1)
	r := gin.New()
	SetupRoutes(r, cfg, middlewares.NewMiddlewareManager(tm, nil, log), Handlers{
		Auth:    handlers.NewAuthHandler(services.NewUserService(store, log), tm),
		Group:   handlers.NewGroupHandler(groups, pickup),
		Seller:  handlers.NewSellerHandler(services.NewSellerService(store, trust, log), products, ratings),
		Product: handlers.NewProductHandler(products),
		Rating:  handlers.NewRatingHandler(ratings),
		Deal:    handlers.NewDealHandler(services.NewDealService(store, log)),
	})
	return &api{t: t, r: r}
}

type response struct {
	Status int    `json:"-"`
	Data   any    `json:"data"`
	Error  string `json:"error"`
}

func (a *api) do(method, path, token string, body any) response {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)

	res := response{Status: w.Code}
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	}
	return res
}

func (a *api) register(name, role string) (token string, id uint) {
	a.t.Helper()
	res := a.do(http.MethodPost, "/api/v1/users", "", gin.H{"name": name, "email": name + "@lockdeal.test", "role": role})
	require.Equal(a.t, http.StatusCreated, res.Status, res.Error)
	data := res.Data.(map[string]any)
	user := data["user"].(map[string]any)
	return data["token"].(string), uint(user["id"].(float64))
}

func field(t *testing.T, data any, key string) any {
	t.Helper()
	m, ok := data.(map[string]any)
	require.True(t, ok, "data is %T", data)
	return m[key]
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", "", nil).Status)
}

func TestRoutes_RequireToken(t *testing.T) {
	a := newAPI(t)
	res := a.do(http.MethodPost, "/api/v1/groups", "", gin.H{"product_id": 1})
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	res = a.do(http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusOK, res.Status, "product listing is public")
}

func TestRoutes_DuplicateEmail(t *testing.T) {
	a := newAPI(t)
	a.register("andi", "customer")
	res := a.do(http.MethodPost, "/api/v1/users", "", gin.H{"name": "andi", "email": "andi@lockdeal.test", "role": "customer"})
	assert.Equal(t, http.StatusConflict, res.Status)
}

func TestRoutes_GroupBuyingFlow(t *testing.T) {
	a := newAPI(t)
	sellerToken, sellerID := a.register("budi", "seller")
	andiToken, _ := a.register("andi", "customer")
	sariToken, _ := a.register("sari", "customer")

	res := a.do(http.MethodPost, "/api/v1/sellers", sellerToken, gin.H{"shop_name": "Toko Budi", "address": "Jl. Merdeka 1", "contact": "0812"})
	require.Equal(t, http.StatusOK, res.Status, res.Error)

	product := gin.H{"name": "Beras", "price": "100", "unit": "kg"}
	res = a.do(http.MethodPost, "/api/v1/products", sellerToken, product)
	assert.Equal(t, http.StatusForbidden, res.Status, "onboarding fee not paid")

	res = a.do(http.MethodPost, "/api/v1/sellers/me/paid", sellerToken, nil)
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	res = a.do(http.MethodPost, "/api/v1/products", sellerToken, product)
	require.Equal(t, http.StatusCreated, res.Status, res.Error)
	productID := field(t, res.Data, "id")

	res = a.do(http.MethodPost, "/api/v1/groups", andiToken, gin.H{"product_id": productID})
	require.Equal(t, http.StatusCreated, res.Status, res.Error)
	groupPath := fmt.Sprintf("/api/v1/groups/%v", field(t, res.Data, "id"))

	for _, token := range []string{andiToken, sariToken} {
		res = a.do(http.MethodPost, groupPath+"/join", token, gin.H{"quantity": 1})
		require.Equal(t, http.StatusCreated, res.Status, res.Error)
	}
	res = a.do(http.MethodPost, groupPath+"/join", andiToken, gin.H{"quantity": -1})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = a.do(http.MethodPost, groupPath+"/accept", andiToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = a.do(http.MethodPost, groupPath+"/accept", sellerToken, nil)
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	deal := field(t, res.Data, "deal")
	assert.Equal(t, "200", field(t, deal, "total_amount"))
	assert.Equal(t, "pending", field(t, deal, "status"))

	res = a.do(http.MethodPost, groupPath+"/join", andiToken, gin.H{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, res.Status, "group is locked")

	res = a.do(http.MethodGet, "/api/v1/groups/mine", andiToken, nil)
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	mine := res.Data.([]any)
	require.Len(t, mine, 1)
	code := field(t, field(t, mine[0], "membership"), "pickup_code").(string)
	require.Len(t, code, 6)

	res = a.do(http.MethodPost, groupPath+"/pickup/verify", sellerToken, gin.H{"otp": "000000"})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = a.do(http.MethodPost, groupPath+"/pickup/verify", sellerToken, gin.H{"otp": code})
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	assert.Equal(t, "andi", field(t, res.Data, "customer_name"))
	assert.Equal(t, "Jl. Merdeka 1", field(t, res.Data, "seller_address"))

	res = a.do(http.MethodPost, "/api/v1/ratings", andiToken, gin.H{"seller_id": sellerID, "score": 5})
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	res = a.do(http.MethodPost, "/api/v1/ratings", sariToken, gin.H{"seller_id": sellerID, "score": 1})
	assert.Equal(t, http.StatusForbidden, res.Status, "sari has not picked up yet")

	res = a.do(http.MethodGet, fmt.Sprintf("/api/v1/sellers/%d/trust", sellerID), "", nil)
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	assert.InDelta(t, 5.0, field(t, res.Data, "trust_score"), 1e-9)

	res = a.do(http.MethodGet, fmt.Sprintf("/api/v1/sellers/%d/can-set-price?price=50000", sellerID), "", nil)
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	assert.Equal(t, true, field(t, res.Data, "allowed"), "trusted sellers are unlimited")

	res = a.do(http.MethodGet, "/api/v1/deals", sellerToken, nil)
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	assert.Len(t, res.Data, 1)
}
